package api

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opensass/eldflow/internal/eld"
	"github.com/opensass/eldflow/internal/metrics"
)

// PanelRegistry keeps one ELD panel per dashboard session. Least recently
// used panels are evicted; an evicted session gets a fresh panel that is
// reloaded from storage.
type PanelRegistry struct {
	provider eld.TripDataProvider
	service  eld.LogSubmissionService

	mu     sync.Mutex
	panels *lru.Cache[string, *eld.Panel]
}

// NewPanelRegistry creates a registry holding at most size panels.
func NewPanelRegistry(size int, provider eld.TripDataProvider, service eld.LogSubmissionService) (*PanelRegistry, error) {
	cache, err := lru.New[string, *eld.Panel](size)
	if err != nil {
		return nil, fmt.Errorf("create panel cache: %w", err)
	}
	return &PanelRegistry{provider: provider, service: service, panels: cache}, nil
}

// Panel returns the session's panel showing tripID, switching trips when
// the panel currently shows another one.
func (r *PanelRegistry) Panel(ctx context.Context, id Identity, tripID string) (*eld.Panel, error) {
	key := id.SessionID
	if key == "" {
		key = "driver:" + id.DriverID
	}

	r.mu.Lock()
	panel, ok := r.panels.Get(key)
	if ok {
		metrics.PanelCacheHits.Inc()
	} else {
		metrics.PanelCacheMisses.Inc()
		panel = eld.NewPanel(r.provider, r.service, id.DriverID)
		panel.OnTransition(countTransition)
		r.panels.Add(key, panel)
	}
	r.mu.Unlock()

	if panel.TripID() != tripID {
		if err := panel.SelectTrip(ctx, tripID); err != nil {
			// A failed load leaves an empty ledger behind.
			r.mu.Lock()
			r.panels.Remove(key)
			r.mu.Unlock()
			return nil, err
		}
	}
	return panel, nil
}

func countTransition(_, to eld.State) {
	metrics.PanelTransitions.WithLabelValues(to.String()).Inc()
}

// Forget drops the panel of a session.
func (r *PanelRegistry) Forget(sessionID string) {
	r.mu.Lock()
	r.panels.Remove(sessionID)
	r.mu.Unlock()
}

// Len returns the number of cached panels.
func (r *PanelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.panels.Len()
}
