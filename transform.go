package telerelay

// Transformer injects a prefix and/or suffix into message text.
type Transformer struct {
	enabled bool
	prefix  string // empty when disabled
	suffix  string // empty when disabled
}

// NewTransformer builds the transformer for a mapping.
func NewTransformer(m Mapping) Transformer {
	t := Transformer{enabled: m.ModificationEnabled}
	if m.PrefixEnabled {
		t.prefix = m.Prefix
	}
	if m.SuffixEnabled {
		t.suffix = m.Suffix
	}
	return t
}

// Modify returns text with the configured prefix and suffix applied, each
// separated from the body by a newline. Applying it twice adds them twice.
func (t Transformer) Modify(text string) string {
	return t.leading() + text + t.trailing()
}

// Active reports whether Modify can change its input.
func (t Transformer) Active() bool {
	return t.enabled && (t.prefix != "" || t.suffix != "")
}

// leading returns what Modify prepends.
func (t Transformer) leading() string {
	if !t.enabled || t.prefix == "" {
		return ""
	}
	return t.prefix + "\n"
}

func (t Transformer) trailing() string {
	if !t.enabled || t.suffix == "" {
		return ""
	}
	return "\n" + t.suffix
}
