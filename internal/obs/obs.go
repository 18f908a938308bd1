package obs

import "time"

// RequestContext is everything the access log records for one interception.
type RequestContext struct {
	RequestID     string
	Method        string
	URL           string
	Class         string
	Source        string
	CacheStatus   string
	Status        int
	Duration      time.Duration
	BytesOut      int64
	ErrorCategory string
	Version       string
	UserAgent     string
	RemoteAddr    string
}
