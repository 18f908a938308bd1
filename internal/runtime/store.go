package runtime

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxRetired = 10

type Leased interface {
	comparable
	IncRef()
	DecRef()
	RefCount() int64
	MarkRetired(now time.Time)
	Retired() bool
}

type holder[T any] struct {
	value T
}

// Store holds the active value and keeps superseded values until their last
// user releases them, then hands them to the reap callback.
type Store[T Leased] struct {
	current    atomic.Pointer[holder[T]]
	mu         sync.Mutex
	retired    []T
	maxRetired int
	onReap     func(T)
}

func NewStore[T Leased](onReap func(T)) *Store[T] {
	return &Store[T]{maxRetired: defaultMaxRetired, onReap: onReap}
}

func (s *Store[T]) Get() (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	h := s.current.Load()
	if h == nil || h.value == zero {
		return zero, false
	}
	return h.value, true
}

// Acquire leases the active value. A value retired between the load and the
// increment may already have been reaped, so it is given back and the load
// retried against whatever Swap installed.
func (s *Store[T]) Acquire() (T, bool) {
	var zero T
	for {
		value, ok := s.Get()
		if !ok {
			return zero, false
		}
		value.IncRef()
		if !value.Retired() {
			return value, true
		}
		s.Release(value)
		if next, ok := s.Get(); !ok || next == value {
			return zero, false
		}
	}
}

func (s *Store[T]) Release(value T) {
	var zero T
	if value == zero {
		return
	}
	value.DecRef()
	if value.Retired() && value.RefCount() <= 0 {
		s.Reap()
	}
}

// Swap makes next active and retires the previous value.
func (s *Store[T]) Swap(next T) {
	if s == nil {
		return
	}
	var zero T
	s.mu.Lock()
	previous := s.current.Swap(&holder[T]{value: next})
	if previous != nil && previous.value != zero && previous.value != next {
		previous.value.MarkRetired(time.Now())
		s.retired = append(s.retired, previous.value)
	}
	s.mu.Unlock()

	s.Reap()
}

func (s *Store[T]) RetiredCount() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	count := len(s.retired)
	s.mu.Unlock()
	return count
}

func (s *Store[T]) Reap() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if len(s.retired) == 0 {
		s.mu.Unlock()
		return
	}
	var reaped []T
	retained := s.retired[:0]
	for _, value := range s.retired {
		if value.RefCount() > 0 {
			retained = append(retained, value)
			continue
		}
		reaped = append(reaped, value)
	}
	s.retired = retained
	s.mu.Unlock()

	if s.onReap == nil {
		return
	}
	for _, value := range reaped {
		s.onReap(value)
	}
}

// Drain returns every retired value and forgets them regardless of refcount.
func (s *Store[T]) Drain() []T {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	drained := append([]T(nil), s.retired...)
	s.retired = nil
	s.mu.Unlock()
	return drained
}

func (s *Store[T]) SetMaxRetired(limit int) {
	if s == nil {
		return
	}
	if limit <= 0 {
		limit = defaultMaxRetired
	}
	s.mu.Lock()
	s.maxRetired = limit
	s.mu.Unlock()
}

// UnderPressure reports whether too many superseded versions are still draining.
func (s *Store[T]) UnderPressure() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := s.maxRetired
	if limit <= 0 {
		limit = defaultMaxRetired
	}
	return len(s.retired) >= limit
}
