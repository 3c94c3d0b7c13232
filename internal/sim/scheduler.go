// Per-simulation activity scheduler: one cooperative timer-driven loop
// drives an activity cycle per tick. Agents within a tick run strictly
// sequentially so backend write ordering stays predictable.
package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kindledapp/agentsim/internal/backend"
	"github.com/kindledapp/agentsim/internal/geo"
	"github.com/kindledapp/agentsim/internal/metrics"
)

// firstTickDelay makes a freshly started simulation act almost
// immediately instead of waiting a full interval.
const firstTickDelay = 500 * time.Millisecond

// burstPause is the fixed pause between agents during triggerBurst.
const burstPause = 300 * time.Millisecond

// Action weights used to build each agent's candidate list.
const (
	weightJoin    = 0.6
	weightSend    = 0.8
	weightRespond = 0.7
	weightPrayer  = 0.1
	weightMove    = 0.3
)

// Simulation is one running agent population with its timer.
type Simulation struct {
	ID        string
	Config    Config
	Agents    []*Agent
	StartedAt time.Time
	Interval  time.Duration

	loader *Loader
	exec   *Executors
	rng    Rand

	agentIDs map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSimulation(id string, cfg Config, roster []*Agent, store backend.Store, rng Rand, drift *geo.Drift) *Simulation {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Simulation{
		ID:        id,
		Config:    cfg,
		Agents:    roster,
		StartedAt: time.Now().UTC(),
		Interval:  cfg.Activity.TickInterval(),
		loader:    NewLoader(store),
		rng:       rng,
		agentIDs:  make(map[string]bool, len(roster)),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, a := range roster {
		s.agentIDs[a.ID] = true
	}
	s.exec = NewExecutors(store, NewGenerator(rng), rng, drift, s)
	return s
}

// start launches the repeating tick loop plus one near-immediate tick.
func (s *Simulation) start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Simulation) run() {
	defer s.wg.Done()

	first := time.NewTimer(firstTickDelay)
	defer first.Stop()
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-first.C:
			s.tick()
		case <-ticker.C:
			s.tick()
		}
	}
}

// stop cancels the tick loop and all pending delayed sends, then waits
// for in-flight work to drain. Backend rows already written stay.
func (s *Simulation) stop() {
	s.cancel()
	s.wg.Wait()
}

// After schedules a delayed effect that dies with the simulation.
func (s *Simulation) After(d time.Duration, fn func(ctx context.Context)) {
	if d <= 0 {
		d = time.Millisecond
	}
	s.wg.Add(1)
	t := time.NewTimer(d)
	go func() {
		defer s.wg.Done()
		defer t.Stop()
		select {
		case <-s.ctx.Done():
		case <-t.C:
			fn(s.ctx)
		}
	}()
}

// tick runs one activity cycle: load a world snapshot, then let every
// agent act in roster order. A failed snapshot aborts the whole tick.
func (s *Simulation) tick() {
	snap, err := s.loader.Load(s.ctx)
	if err != nil {
		slog.Warn("snapshot load failed, skipping tick", "simulation", s.ID, "error", err)
		metrics.TicksAborted.Inc()
		return
	}

	for _, a := range s.Agents {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		s.step(a, snap)
	}
	metrics.TicksRun.Inc()
}

// step selects and executes one action for the agent. Failures are
// logged and swallowed so the rest of the roster still acts.
func (s *Simulation) step(a *Agent, snap *Snapshot) {
	action, ok := Select(s.rng, s.candidates(a, snap))
	if !ok {
		return // nothing qualified this tick; normal outcome
	}

	var err error
	switch action {
	case ActionJoinRoom:
		err = s.exec.JoinRoom(s.ctx, a)
	case ActionSendMessage:
		err = s.exec.SendMessage(s.ctx, a)
	case ActionRespond:
		err = s.exec.Respond(s.ctx, a, snap, s.isOwnAgent)
	case ActionPrayerRequest:
		err = s.exec.PrayerRequest(s.ctx, a)
	case ActionMove:
		err = s.exec.Move(s.ctx, a)
	}

	if err != nil {
		slog.Warn("agent action failed",
			"simulation", s.ID, "agent", a.ID, "action", action.String(), "error", err)
		metrics.ActionsFailed.WithLabelValues(action.String()).Inc()
		return
	}
	a.LastActive = time.Now().UTC()
	metrics.ActionsExecuted.WithLabelValues(action.String()).Inc()
}

// candidates builds the agent's weighted action list, gated by the
// agent's behavior flags and world-state preconditions.
func (s *Simulation) candidates(a *Agent, snap *Snapshot) []Candidate {
	var out []Candidate

	if a.Behaviors.Join && len(snap.Rooms) > 0 {
		out = append(out, Candidate{Action: ActionJoinRoom, Weight: weightJoin})
	}
	if a.Behaviors.Send && len(snap.Rooms) > 0 {
		out = append(out, Candidate{Action: ActionSendMessage, Weight: weightSend})
	}
	if a.Behaviors.Respond && s.hasRespondTarget(snap) {
		out = append(out, Candidate{Action: ActionRespond, Weight: weightRespond})
	}
	if a.Behaviors.Prayer {
		out = append(out, Candidate{Action: ActionPrayerRequest, Weight: weightPrayer})
	}
	if a.Behaviors.Move {
		out = append(out, Candidate{Action: ActionMove, Weight: weightMove})
	}
	return out
}

func (s *Simulation) hasRespondTarget(snap *Snapshot) bool {
	for _, m := range snap.Messages {
		if !m.AuthorSimulated && !s.isOwnAgent(m.AuthorID) {
			return true
		}
	}
	return false
}

func (s *Simulation) isOwnAgent(id string) bool {
	return s.agentIDs[id]
}

// burst forces every agent, in roster order with a fixed pause between
// them, to join a room and then send a message, bypassing weighted
// selection. Demo and testing only.
func (s *Simulation) burst() {
	for _, a := range s.Agents {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.exec.JoinRoom(s.ctx, a); err != nil {
			slog.Warn("burst join failed", "simulation", s.ID, "agent", a.ID, "error", err)
		}
		if err := s.exec.SendMessage(s.ctx, a); err != nil {
			slog.Warn("burst send failed", "simulation", s.ID, "agent", a.ID, "error", err)
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(burstPause):
		}
	}
}
