package assets

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/model"
)

// Reloadable is implemented by components holding compiled asset state.
type Reloadable interface {
	// Name identifies the component in reload reports.
	Name() string
	// Kind is the asset kind the component compiles from.
	Kind() model.AssetKind
	// Reload drops compiled state and rebuilds it from the store.
	Reload() model.ReloadResult
}

// Reloader coordinates reloads across registered components.
//
// Components reload independently: a bad manual edit in one asset family
// must not block the others from refreshing. Only one reload runs at a
// time; a concurrent trigger is refused, not queued.
type Reloader struct {
	log *zap.Logger

	mu         sync.Mutex
	components []Reloadable
	running    bool
}

// NewReloader creates an empty reload orchestrator.
func NewReloader(log *zap.Logger) *Reloader {
	return &Reloader{log: log.Named("reload")}
}

// Register adds a component. Registration order is reload order.
func (r *Reloader) Register(c Reloadable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, c)
}

// ReloadAll reloads every registered component.
func (r *Reloader) ReloadAll() (model.ReloadOutcome, error) {
	return r.reload(nil)
}

// ReloadKinds reloads only components compiling the given asset kinds.
func (r *Reloader) ReloadKinds(kinds ...model.AssetKind) (model.ReloadOutcome, error) {
	set := make(map[model.AssetKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return r.reload(set)
}

func (r *Reloader) reload(kinds map[model.AssetKind]bool) (model.ReloadOutcome, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return model.ReloadOutcome{}, model.ErrConflict
	}
	r.running = true
	components := make([]Reloadable, len(r.components))
	copy(components, r.components)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	start := time.Now()
	var results []model.ReloadResult
	for _, c := range components {
		if kinds != nil && !kinds[c.Kind()] {
			continue
		}
		res := c.Reload()
		switch res.Status {
		case model.ReloadOK:
			r.log.Info("component reloaded",
				zap.String("component", res.Component),
				zap.Int("loaded", res.Loaded),
				zap.Int64("durationMs", res.DurationMs))
		case model.ReloadPartial:
			r.log.Warn("component partially reloaded",
				zap.String("component", res.Component),
				zap.Int("loaded", res.Loaded),
				zap.Strings("errors", res.Errors))
		case model.ReloadFailed:
			r.log.Error("component reload failed",
				zap.String("component", res.Component),
				zap.Strings("errors", res.Errors))
		}
		results = append(results, res)
	}

	outcome := model.ReloadOutcome{
		Results:    results,
		DurationMs: time.Since(start).Milliseconds(),
	}
	r.log.Info("reload finished", zap.Int64("totalMs", outcome.DurationMs))
	return outcome, nil
}
