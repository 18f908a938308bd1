package obs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type AccessLogEntry struct {
	Timestamp     string `json:"ts"`
	RequestID     string `json:"request_id"`
	Method        string `json:"method"`
	URL           string `json:"url"`
	Class         string `json:"class"`
	Source        string `json:"source"`
	CacheStatus   string `json:"cache_status"`
	Status        int    `json:"status"`
	DurationMS    int64  `json:"duration_ms"`
	BytesOut      int64  `json:"bytes_out"`
	ErrorCategory string `json:"error_category"`
	Version       string `json:"worker_version"`
	UserAgent     string `json:"user_agent,omitempty"`
	RemoteAddr    string `json:"remote_addr,omitempty"`
}

var (
	accessLogMu  sync.Mutex
	accessOutput io.Writer = os.Stdout
)

// SetAccessLogOutput redirects access log lines; nil restores stdout.
func SetAccessLogOutput(w io.Writer) {
	accessLogMu.Lock()
	defer accessLogMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	accessOutput = w
}

func LogAccess(ctx RequestContext) {
	entry := AccessLogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:     defaultString(ctx.RequestID, "none"),
		Method:        ctx.Method,
		URL:           redactURL(ctx.URL),
		Class:         defaultString(ctx.Class, "unknown"),
		Source:        defaultString(ctx.Source, "none"),
		CacheStatus:   defaultString(ctx.CacheStatus, "bypass"),
		Status:        ctx.Status,
		DurationMS:    ctx.Duration.Milliseconds(),
		BytesOut:      ctx.BytesOut,
		ErrorCategory: defaultString(ctx.ErrorCategory, "none"),
		Version:       defaultString(ctx.Version, "none"),
		UserAgent:     ctx.UserAgent,
		RemoteAddr:    ctx.RemoteAddr,
	}

	data, err := json.Marshal(entry)
	accessLogMu.Lock()
	defer accessLogMu.Unlock()
	if err != nil {
		_, _ = fmt.Fprintf(accessOutput, "log_marshal_error request_id=%s error=%v\n", entry.RequestID, err)
		return
	}
	_, _ = accessOutput.Write(append(data, '\n'))
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// redactURL drops query values of well-known credential parameters.
func redactURL(raw string) string {
	idx := strings.Index(raw, "?")
	if idx < 0 {
		return raw
	}
	params := strings.Split(raw[idx+1:], "&")
	for i, param := range params {
		name, _, found := strings.Cut(param, "=")
		if found && isSensitiveParam(name) {
			params[i] = name + "=[redacted]"
		}
	}
	return raw[:idx+1] + strings.Join(params, "&")
}

func isSensitiveParam(name string) bool {
	switch strings.ToLower(name) {
	case "key", "api_key", "apikey", "token", "access_token", "auth":
		return true
	default:
		return false
	}
}
