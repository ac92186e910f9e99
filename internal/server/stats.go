package server

import (
	"sync/atomic"

	"github.com/zeusync/xrplace/internal/core/events/bus"
)

// eventStats aggregates session bus traffic across all connections.
type eventStats struct {
	published atomic.Uint64
	delivered atomic.Uint64
	errors    atomic.Uint64
}

var _ bus.EventBusObserver = (*eventStats)(nil)

func (s *eventStats) OnPublish(string, bus.Event) {
	s.published.Add(1)
}

func (s *eventStats) OnDelivered(_ string, handlers int, err error, _ int64) {
	s.delivered.Add(uint64(handlers))
	if err != nil {
		s.errors.Add(1)
	}
}

type eventStatsSnapshot struct {
	Published uint64 `json:"published"`
	Delivered uint64 `json:"delivered"`
	Errors    uint64 `json:"errors"`
}

func (s *eventStats) snapshot() eventStatsSnapshot {
	return eventStatsSnapshot{
		Published: s.published.Load(),
		Delivered: s.delivered.Load(),
		Errors:    s.errors.Load(),
	}
}
