package telerelay

import (
	"log/slog"
	"sync/atomic"
)

// RouteKey identifies a route by its canonical source and destination.
type RouteKey struct {
	Source      string
	Destination string
}

// RouteSettings is an immutable snapshot of a route's behavior.
type RouteSettings struct {
	Enabled     bool
	Filter      *RouteFilter
	Transformer Transformer
	Mapping     Mapping
}

func newRouteSettings(m Mapping, logger *slog.Logger) *RouteSettings {
	return &RouteSettings{
		Enabled:     m.Enabled,
		Filter:      NewRouteFilter(m, logger),
		Transformer: NewTransformer(m),
		Mapping:     m,
	}
}

// Route binds one source chat to one destination chat. Its settings are
// replaced as a whole, so concurrent handlers see either the old or the new
// snapshot.
type Route struct {
	Source      ChatRef
	Destination ChatRef

	key      RouteKey
	logger   *slog.Logger
	settings atomic.Pointer[RouteSettings]
}

// NewRoute builds a route from a mapping.
func NewRoute(m Mapping, logger *slog.Logger) *Route {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Route{
		Source:      m.Source,
		Destination: m.Destination,
		key:         m.Key(),
		logger:      logger.With("source", m.Source.String(), "destination", m.Destination.String()),
	}
	r.settings.Store(newRouteSettings(m, r.logger))
	return r
}

// Key returns the route's identity.
func (r *Route) Key() RouteKey { return r.key }

// Settings returns the current snapshot.
func (r *Route) Settings() *RouteSettings { return r.settings.Load() }

// Refresh replaces the route's settings with the mapping in cfg that has the
// same key. It reports whether such a mapping was found. Only that mapping is
// validated; when it is invalid the current snapshot is kept and the
// validation error returned.
func (r *Route) Refresh(cfg *Config) (bool, error) {
	for _, m := range cfg.Mappings {
		if m.Key() != r.key {
			continue
		}
		if err := m.validate(); err != nil {
			return true, err
		}
		r.settings.Store(newRouteSettings(m, r.logger))
		return true, nil
	}
	return false, nil
}
