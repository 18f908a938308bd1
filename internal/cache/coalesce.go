package cache

import (
	"context"
	"sync"
	"time"
)

const DefaultMaxFlights = 10000

// Flight is one in-progress network fetch that concurrent misses for the same
// key may attach to instead of dispatching their own.
type Flight struct {
	done      chan struct{}
	result    Entry
	err       error
	startedAt time.Time
}

type Coalescer struct {
	mu         sync.Mutex
	flights    map[string]*Flight
	maxFlights int
}

func NewCoalescer(maxFlights int) *Coalescer {
	if maxFlights <= 0 {
		maxFlights = DefaultMaxFlights
	}
	return &Coalescer{flights: make(map[string]*Flight), maxFlights: maxFlights}
}

// Start returns the flight for key. leader reports whether the caller must
// perform the fetch and call Finish; ok is false when coalescing is unavailable
// and the caller should fetch on its own.
func (c *Coalescer) Start(key string) (flight *Flight, leader bool, ok bool) {
	if c == nil {
		return nil, false, false
	}
	if key == "" {
		return nil, false, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, found := c.flights[key]; found {
		return existing, false, true
	}
	if c.maxFlights > 0 && len(c.flights) >= c.maxFlights {
		return nil, false, false
	}
	flight = &Flight{done: make(chan struct{}), startedAt: time.Now()}
	c.flights[key] = flight
	return flight, true, true
}

func (c *Coalescer) Finish(key string, flight *Flight, entry Entry, err error) {
	if c == nil || flight == nil {
		return
	}
	c.mu.Lock()
	if current, exists := c.flights[key]; exists && current == flight {
		delete(c.flights, key)
	}
	c.mu.Unlock()
	flight.result = entry
	flight.err = err
	close(flight.done)
}

// Wait blocks until the leader finishes. done is false if ctx ended first.
func (c *Coalescer) Wait(ctx context.Context, flight *Flight) (entry Entry, err error, done bool) {
	if flight == nil {
		return Entry{}, nil, false
	}
	select {
	case <-flight.done:
		return flight.result, flight.err, true
	case <-ctx.Done():
		return Entry{}, nil, false
	}
}

func (c *Coalescer) InFlight() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flights)
}
