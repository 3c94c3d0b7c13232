package sim

import (
	"context"
	"testing"
)

func testConfig(population int) Config {
	return Config{
		Population: population,
		CenterLat:  47.6062,
		CenterLng:  -122.3321,
		RadiusM:    2000,
		Speed:      SpeedInstant,
		Activity:   ActivityHigh,
		Mix:        PersonalityMix{Encourager: 0.25, Seeker: 0.25, PrayerWarrior: 0.25, Listener: 0.25},
		Behaviors:  BehaviorFlags{Join: true, Send: true, Respond: true, Prayer: true, Move: true},
	}
}

func TestCreatePopulationPersistsAllAgents(t *testing.T) {
	store := newMemStore()
	f := NewFactory(store, NewRand(7))

	roster, err := f.CreatePopulation(context.Background(), "sim-1", testConfig(12))
	if err != nil {
		t.Fatalf("CreatePopulation: %v", err)
	}
	if len(roster) != 12 {
		t.Fatalf("roster size %d, want 12", len(roster))
	}
	for _, a := range roster {
		u, ok := store.users[a.ID]
		if !ok {
			t.Fatalf("agent %s not persisted", a.ID)
		}
		if !u.Simulated {
			t.Errorf("agent %s persisted without simulated flag", a.ID)
		}
		if u.SimulationID != "sim-1" {
			t.Errorf("agent %s has simulation id %q", a.ID, u.SimulationID)
		}
	}
}

func TestPersonalityMixProportions(t *testing.T) {
	store := newMemStore()
	f := NewFactory(store, NewRand(3))

	cfg := testConfig(100)
	cfg.Mix = PersonalityMix{Encourager: 0.5, Seeker: 0.3, PrayerWarrior: 0.2}

	roster, err := f.CreatePopulation(context.Background(), "sim-mix", cfg)
	if err != nil {
		t.Fatalf("CreatePopulation: %v", err)
	}

	counts := make(map[Personality]int)
	for _, a := range roster {
		counts[a.Personality]++
	}
	if counts[PersonalityEncourager] != 50 || counts[PersonalitySeeker] != 30 || counts[PersonalityPrayerWarrior] != 20 {
		t.Errorf("mix counts %v, want 50/30/20/0", counts)
	}
	if counts[PersonalityListener] != 0 {
		t.Errorf("listener ratio 0 produced %d listeners", counts[PersonalityListener])
	}
}

func TestZeroSumMixDefaults(t *testing.T) {
	store := newMemStore()
	f := NewFactory(store, NewRand(3))

	cfg := testConfig(5)
	cfg.Mix = PersonalityMix{}

	roster, err := f.CreatePopulation(context.Background(), "sim-zero", cfg)
	if err != nil {
		t.Fatalf("CreatePopulation: %v", err)
	}
	if len(roster) != 5 {
		t.Fatalf("roster size %d, want 5", len(roster))
	}
	for _, a := range roster {
		if a.Personality != PersonalityEncourager {
			t.Errorf("zero-sum mix produced personality %s", a.Personality)
		}
	}
}

func TestRegistrationFallsBackToProfileTier(t *testing.T) {
	store := newMemStore()
	store.failCreateUser = true
	f := NewFactory(store, NewRand(9))

	roster, err := f.CreatePopulation(context.Background(), "sim-fb", testConfig(4))
	if err != nil {
		t.Fatalf("CreatePopulation: %v", err)
	}
	if len(roster) != 4 {
		t.Fatalf("roster size %d, want 4 via profile fallback", len(roster))
	}
	for _, a := range roster {
		if store.users[a.ID].HasIdentity {
			t.Errorf("agent %s should have landed on the profile tier", a.ID)
		}
	}
}

func TestAgentsDroppedWhenBothTiersFail(t *testing.T) {
	store := newMemStore()
	store.failCreateUser = true
	store.failCreateProfile = true
	f := NewFactory(store, NewRand(9))

	roster, err := f.CreatePopulation(context.Background(), "sim-drop", testConfig(4))
	if err != nil {
		t.Fatalf("CreatePopulation returned error, want empty roster: %v", err)
	}
	if len(roster) != 0 {
		t.Fatalf("roster size %d, want 0 when no agent persists", len(roster))
	}
}

func TestAgentsPlacedWithinRadius(t *testing.T) {
	store := newMemStore()
	f := NewFactory(store, NewRand(11))

	cfg := testConfig(30)
	roster, err := f.CreatePopulation(context.Background(), "sim-geo", cfg)
	if err != nil {
		t.Fatalf("CreatePopulation: %v", err)
	}
	for _, a := range roster {
		if dLat := a.Lat - cfg.CenterLat; dLat > 0.1 || dLat < -0.1 {
			t.Errorf("agent %s latitude %f far outside spread", a.ID, a.Lat)
		}
	}
}
