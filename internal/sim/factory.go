// Agent factory: creates and persists a simulation's population with
// personality and spatial distribution.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kindledapp/agentsim/internal/backend"
	"github.com/kindledapp/agentsim/internal/geo"
	"github.com/kindledapp/agentsim/internal/metrics"
)

var firstNames = []string{
	"Grace", "Caleb", "Naomi", "Ethan", "Lydia", "Micah", "Abigail", "Jonah",
	"Hannah", "Silas", "Ruth", "Levi", "Esther", "Asher", "Miriam", "Eli",
	"Phoebe", "Noah", "Tabitha", "Simon", "Joanna", "Felix", "Priscilla", "Marcus",
}

var lastNames = []string{
	"Carter", "Bennett", "Hayes", "Whitfield", "Sloane", "Mercer", "Ellison",
	"Bishop", "Calloway", "Drummond", "Farrow", "Granger", "Holloway",
	"Kingsley", "Latham", "Monroe", "Pennington", "Rhodes", "Sutton", "Winslow",
}

// Factory creates agents for a simulation and persists them to the
// backend before they enter the roster.
type Factory struct {
	store backend.Store
	rng   Rand
}

// NewFactory creates an agent factory.
func NewFactory(store backend.Store, rng Rand) *Factory {
	return &Factory{store: store, rng: rng}
}

// CreatePopulation builds and persists cfg.Population agents for the
// simulation. Agents that fail both registration tiers are dropped, so
// the returned roster may be smaller than requested.
func (f *Factory) CreatePopulation(ctx context.Context, simulationID string, cfg Config) ([]*Agent, error) {
	personalities := f.assignPersonalities(cfg.Population, cfg.Mix)

	roster := make([]*Agent, 0, cfg.Population)
	for i := 0; i < cfg.Population; i++ {
		a := f.buildAgent(simulationID, cfg, personalities[i])
		if err := f.register(ctx, a); err != nil {
			slog.Warn("agent registration failed, dropping agent",
				"simulation", simulationID, "name", a.DisplayName, "error", err)
			metrics.AgentsDropped.Inc()
			continue
		}
		metrics.AgentsCreated.Inc()
		roster = append(roster, a)
	}

	if len(roster) < cfg.Population {
		slog.Warn("population smaller than requested",
			"simulation", simulationID, "requested", cfg.Population, "created", len(roster))
	}
	return roster, nil
}

// assignPersonalities distributes personalities by proportional rounding
// of the mix ratios, then shuffles so assignment order shows no clusters.
func (f *Factory) assignPersonalities(population int, mix PersonalityMix) []Personality {
	ratios := mix.ratios()
	total := 0.0
	for _, r := range ratios {
		total += r
	}
	if total <= 0 {
		// Zero-sum mix: everyone defaults to the first category.
		out := make([]Personality, population)
		return out
	}

	counts := [NumPersonalities]int{}
	assigned := 0
	for i, r := range ratios {
		counts[i] = int(r / total * float64(population))
		assigned += counts[i]
	}
	// Hand out rounding remainder in category order.
	for i := 0; assigned < population; i = (i + 1) % NumPersonalities {
		if ratios[i] > 0 {
			counts[i]++
			assigned++
		}
	}

	out := make([]Personality, 0, population)
	for p, n := range counts {
		for j := 0; j < n; j++ {
			out = append(out, Personality(p))
		}
	}
	f.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (f *Factory) buildAgent(simulationID string, cfg Config, p Personality) *Agent {
	lat, lng := geo.RandomWithin(cfg.CenterLat, cfg.CenterLng, cfg.RadiusM, f.rng.Float64)
	name := f.generateName()

	return &Agent{
		ID:           uuid.NewString(),
		DisplayName:  name,
		Personality:  p,
		Activity:     cfg.Activity,
		Speed:        cfg.Speed,
		Behaviors:    cfg.Behaviors,
		Lat:          lat,
		Lng:          lng,
		LastActive:   time.Now().UTC(),
		SimulationID: simulationID,
	}
}

func (f *Factory) generateName() string {
	first := firstNames[f.rng.Intn(len(firstNames))]
	last := lastNames[f.rng.Intn(len(lastNames))]
	return first + " " + last
}

// register persists the agent: fully identified user first, profile-only
// row with a synthetic address on failure. Both failing drops the agent.
func (f *Factory) register(ctx context.Context, a *Agent) error {
	now := time.Now().UTC()
	u := backend.User{
		ID:           a.ID,
		DisplayName:  a.DisplayName,
		Email:        fmt.Sprintf("%s@agents.kindled.app", a.ID[:8]),
		Lat:          a.Lat,
		Lng:          a.Lng,
		CareScore:    f.rng.Intn(40) + 10,
		Simulated:    true,
		SimulationID: a.SimulationID,
		LastActive:   now,
		CreatedAt:    now,
	}

	err := f.store.CreateUser(ctx, u)
	if err == nil {
		return nil
	}
	slog.Debug("identity registration failed, trying profile tier",
		"agent", a.ID, "error", err)

	u.Email = fmt.Sprintf("placeholder+%s@simulated.invalid", a.ID[:8])
	if err := f.store.CreateProfile(ctx, u); err != nil {
		return fmt.Errorf("both registration tiers failed: %w", err)
	}
	return nil
}
