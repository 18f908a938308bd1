package runtime

import (
	"sync/atomic"
	"time"
)

// Lease counts in-flight users of a worker version and remembers when the
// version was retired. Embed it to satisfy Leased.
type Lease struct {
	refCount  atomic.Int64
	retiredAt atomic.Int64
}

func (l *Lease) IncRef() {
	if l == nil {
		return
	}
	l.refCount.Add(1)
}

func (l *Lease) DecRef() {
	if l == nil {
		return
	}
	l.refCount.Add(-1)
}

func (l *Lease) RefCount() int64 {
	if l == nil {
		return 0
	}
	return l.refCount.Load()
}

func (l *Lease) MarkRetired(now time.Time) {
	if l == nil {
		return
	}
	l.retiredAt.Store(now.UnixNano())
}

func (l *Lease) Retired() bool {
	if l == nil {
		return false
	}
	return l.retiredAt.Load() > 0
}

func (l *Lease) RetiredAt() time.Time {
	if l == nil {
		return time.Time{}
	}
	retiredAt := l.retiredAt.Load()
	if retiredAt == 0 {
		return time.Time{}
	}
	return time.Unix(0, retiredAt)
}
