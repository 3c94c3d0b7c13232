package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kindledapp/agentsim/internal/backend"
	"github.com/kindledapp/agentsim/internal/geo"
)

// ErrSimulationNotFound is returned by Stop for unknown ids.
var ErrSimulationNotFound = errors.New("sim: simulation not found")

// Status describes one active simulation.
type Status struct {
	ID         string    `json:"id"`
	AgentCount int       `json:"agent_count"`
	Interval   string    `json:"tick_interval"`
	Activity   string    `json:"activity_level"`
	StartedAt  time.Time `json:"started_at"`
}

// Registry owns the active simulations. It is created and injected by
// the hosting process; there are no package-level rosters or timers.
type Registry struct {
	store backend.Store
	rng   Rand
	drift *geo.Drift

	mu   sync.Mutex
	sims map[string]*Simulation
}

// NewRegistry creates a registry over the store, drawing randomness from
// rng and movement headings from the seed.
func NewRegistry(store backend.Store, rng Rand, driftSeed int64) *Registry {
	return &Registry{
		store: store,
		rng:   rng,
		drift: geo.NewDrift(driftSeed),
		sims:  make(map[string]*Simulation),
	}
}

// Start validates the config, creates and persists the population, and
// begins ticking. Returns the new simulation id. The roster may be
// smaller than the requested population when registrations fail.
func (r *Registry) Start(ctx context.Context, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid simulation config: %w", err)
	}

	id := uuid.NewString()
	factory := NewFactory(r.store, r.rng)
	roster, err := factory.CreatePopulation(ctx, id, cfg)
	if err != nil {
		return "", fmt.Errorf("create population: %w", err)
	}

	s := newSimulation(id, cfg, roster, r.store, r.rng, r.drift)

	r.mu.Lock()
	r.sims[id] = s
	r.mu.Unlock()

	s.start()
	slog.Info("simulation started",
		"simulation", id,
		"agents", len(roster),
		"requested", cfg.Population,
		"interval", s.Interval,
		"activity", cfg.Activity.String(),
		"speed", cfg.Speed.String(),
	)
	return id, nil
}

// Stop cancels the simulation's tick loop and pending delayed sends and
// drops the roster. Backend user rows are deliberately left behind.
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	s, ok := r.sims[id]
	if ok {
		delete(r.sims, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrSimulationNotFound
	}
	s.stop()
	slog.Info("simulation stopped", "simulation", id, "agents", len(s.Agents))
	return nil
}

// StopAll stops every active simulation. Used at process shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	sims := make([]*Simulation, 0, len(r.sims))
	for id, s := range r.sims {
		sims = append(sims, s)
		delete(r.sims, id)
	}
	r.mu.Unlock()

	for _, s := range sims {
		s.stop()
	}
}

// TriggerBurst forces a join-and-send pass over every agent of every
// active simulation. Runs in the background; demo use only.
func (r *Registry) TriggerBurst() {
	r.mu.Lock()
	sims := make([]*Simulation, 0, len(r.sims))
	for _, s := range r.sims {
		sims = append(sims, s)
	}
	r.mu.Unlock()

	for _, s := range sims {
		// Not added to the simulation's WaitGroup: burst aborts on its
		// own as soon as the simulation context is cancelled.
		go s.burst()
	}
	slog.Info("burst triggered", "simulations", len(sims))
}

// Active returns the status of every running simulation, stable order.
func (r *Registry) Active() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.sims))
	for _, s := range r.sims {
		out = append(out, Status{
			ID:         s.ID,
			AgentCount: len(s.Agents),
			Interval:   s.Interval.String(),
			Activity:   s.Config.Activity.String(),
			StartedAt:  s.StartedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
