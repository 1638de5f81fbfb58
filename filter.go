package telerelay

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// patternTimeout bounds a single number pattern match.
const patternTimeout = time.Second

// RouteFilter decides whether a message satisfies a route's keyword and
// number-threshold criteria. It is immutable once built.
type RouteFilter struct {
	keywordsEnabled bool
	include         []string // lowercased
	exclude         []string // lowercased

	thresholdEnabled bool
	min, max         float64
	patterns         []numberPattern

	logger *slog.Logger
}

type numberPattern struct {
	source string
	re     *regexp2.Regexp // nil when the pattern failed to compile
	err    error
}

// NewRouteFilter builds the filter for a mapping. Patterns use the
// Perl/Python dialect (lookaround and backreferences are allowed) and match
// case-insensitively. Patterns that fail to compile are logged and kept as
// inert entries.
func NewRouteFilter(m Mapping, logger *slog.Logger) *RouteFilter {
	if logger == nil {
		logger = slog.Default()
	}

	f := &RouteFilter{
		keywordsEnabled:  m.KeywordFilteringEnabled,
		include:          lowerAll(m.KeywordsInclude),
		exclude:          lowerAll(m.KeywordsExclude),
		thresholdEnabled: m.NumberThresholdEnabled,
		min:              m.NumberThresholdMin,
		max:              m.NumberThresholdMax,
		logger:           logger,
	}
	if math.IsNaN(f.max) {
		f.max = math.Inf(1)
	}

	for _, p := range m.NumberRegexPatterns {
		re, err := regexp2.Compile(p, regexp2.IgnoreCase)
		if err != nil {
			ferr := &FilterError{Pattern: p, Err: err}
			logger.Error("invalid number pattern, skipping", "error", ferr)
			f.patterns = append(f.patterns, numberPattern{source: p, err: ferr})
			continue
		}
		re.MatchTimeout = patternTimeout
		f.patterns = append(f.patterns, numberPattern{source: p, re: re})
	}

	return f
}

// ShouldForward reports whether msg passes the filter. Keyword exclusion and
// inclusion apply only while keyword filtering is enabled for the route.
func (f *RouteFilter) ShouldForward(msg *Message) bool {
	text := msg.Text()
	f.logger.Debug("checking message", "text", truncate(text, 200))

	if f.keywordsEnabled && !f.checkKeywords(text) {
		f.logger.Debug("failed keywords check")
		return false
	}

	if f.thresholdEnabled {
		numbers := f.extractNumbers(text)
		f.logger.Debug("number threshold check",
			"min", f.min,
			"max", f.max,
			"numbers", numbers)

		if len(numbers) == 0 {
			f.logger.Debug("no numbers found in message")
			return false
		}
		if !f.anyInRange(numbers) {
			f.logger.Debug("no numbers within threshold range")
			return false
		}
	}

	return true
}

// checkKeywords applies exclusion first, then inclusion.
func (f *RouteFilter) checkKeywords(text string) bool {
	lower := strings.ToLower(text)

	for _, kw := range f.exclude {
		if strings.Contains(lower, kw) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, kw := range f.include {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractNumbers applies every pattern to text with emphasis asterisks
// removed. A pattern whose capture does not parse contributes nothing.
func (f *RouteFilter) extractNumbers(text string) []float64 {
	cleaned := strings.ReplaceAll(text, "*", "")

	var numbers []float64
	for _, p := range f.patterns {
		if p.re == nil {
			continue
		}
		found, err := p.extract(cleaned)
		if err != nil {
			f.logger.Error("error converting matches to numbers", "error", err)
			continue
		}
		numbers = append(numbers, found...)
	}
	return numbers
}

func (p numberPattern) extract(text string) ([]float64, error) {
	group := 0
	if len(p.re.GetGroupNumbers()) > 1 {
		group = 1
	}

	var out []float64
	m, err := p.re.FindStringMatch(text)
	for ; m != nil && err == nil; m, err = p.re.FindNextMatch(m) {
		g := m.GroupByNumber(group)
		if g == nil || g.Length == 0 {
			continue
		}
		s := g.String()
		n, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return nil, &FilterError{Pattern: p.source, Err: fmt.Errorf("capture %q: %w", s, perr)}
		}
		out = append(out, n)
	}
	if err != nil {
		return nil, &FilterError{Pattern: p.source, Err: err}
	}
	return out, nil
}

func (f *RouteFilter) anyInRange(numbers []float64) bool {
	for _, n := range numbers {
		if n >= f.min && n <= f.max {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
