// Package metrics exposes Prometheus counters for simulator activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tick outcomes
	TicksRun = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentsim_ticks_total",
			Help: "Total activity cycles completed",
		},
	)

	TicksAborted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentsim_ticks_aborted_total",
			Help: "Ticks aborted because the world snapshot failed to load",
		},
	)

	// Agent lifecycle
	AgentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentsim_agents_created_total",
			Help: "Agents persisted and added to a roster",
		},
	)

	AgentsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentsim_agents_dropped_total",
			Help: "Agents dropped after both registration tiers failed",
		},
	)

	// Per-action outcomes
	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsim_actions_total",
			Help: "Agent actions executed",
		},
		[]string{"action"},
	)

	ActionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsim_action_failures_total",
			Help: "Agent actions that failed at the executor boundary",
		},
		[]string{"action"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentsim_messages_sent_total",
			Help: "Messages inserted by agents, including delayed sends",
		},
	)
)
