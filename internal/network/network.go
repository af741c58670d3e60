// Package network reports whether the remote store is reachable.
//
// Sources are edge-triggered: an event is emitted only when the state flips.
package network

import (
	"context"
	"sync"
	"time"

	"pos-terminal/internal/logger"
)

// Status is one network transition
type Status struct {
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Source is consumed by the sync coordinator
type Source interface {
	Events() <-chan Status
	Online() bool
}

const eventBuffer = 8

// emitter is the shared edge-triggered state of every source
type emitter struct {
	mu     sync.Mutex
	online bool
	known  bool
	events chan Status
}

func newEmitter() *emitter {
	return &emitter{events: make(chan Status, eventBuffer)}
}

func (e *emitter) Events() <-chan Status { return e.events }

func (e *emitter) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// set records the state and emits on change. When the consumer lags the
// oldest pending transition is dropped; only the latest state matters.
func (e *emitter) set(online bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.known && e.online == online {
		return false
	}
	e.online = online
	e.known = true

	status := Status{Online: online, At: time.Now().UTC()}
	for {
		select {
		case e.events <- status:
			return true
		default:
			select {
			case <-e.events:
			default:
			}
		}
	}
}

// Manual is driven by the operator or by tests
type Manual struct {
	*emitter
}

// NewManual starts in the given state without emitting
func NewManual(online bool) *Manual {
	m := &Manual{emitter: newEmitter()}
	m.online = online
	m.known = true
	return m
}

// Set changes the state and reports whether it actually flipped
func (m *Manual) Set(online bool) bool {
	return m.set(online)
}

// Pinger is the health check a Prober polls
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober polls a Pinger and emits transitions
type Prober struct {
	*emitter
	pinger   Pinger
	interval time.Duration
	logger   *logger.Logger
}

func NewProber(pinger Pinger, interval time.Duration, log *logger.Logger) *Prober {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Prober{
		emitter:  newEmitter(),
		pinger:   pinger,
		interval: interval,
		logger:   log,
	}
}

// Run probes immediately and then every interval until ctx is done
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	err := p.pinger.Ping(probeCtx)
	if ctx.Err() != nil {
		return
	}
	if p.set(err == nil) {
		if err != nil {
			p.logger.Warn("network_unavailable", "Remote store unreachable", "", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			p.logger.Info("network_available", "Remote store reachable", "", nil)
		}
	}
}
