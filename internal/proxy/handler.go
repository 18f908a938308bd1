package proxy

import (
	"errors"
	"net/http"
	"time"

	"offline_worker/internal/obs"
	"offline_worker/internal/worker"
)

// Handler is the front door: every request goes through the active worker,
// or straight to the network when there is none.
type Handler struct {
	Host    *worker.Host
	Engine  *Engine
	Metrics *obs.Metrics
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Engine == nil {
		http.Error(w, "worker not ready", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = NewRequestID()
	}
	recorder := NewResponseRecorder(w)
	logCtx := obs.RequestContext{
		RequestID:  requestID,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
	}
	defer func() {
		logCtx.Status = recorder.Status()
		if status := recorder.CacheStatus(); status != "" {
			logCtx.CacheStatus = status
		}
		logCtx.BytesOut = recorder.BytesWritten()
		logCtx.ErrorCategory = recorder.ErrorCategory()
		logCtx.Duration = time.Since(start)
		h.Metrics.ObserveRequest(logCtx.Class, logCtx.Source, logCtx.Duration)
		obs.LogAccess(logCtx)
	}()

	active, ok := h.Host.Acquire()
	if ok {
		defer h.Host.Release(active)
		logCtx.Version = active.Version()
	}

	outbound, err := h.Engine.Outbound(r.WithContext(WithRequestID(r.Context(), requestID)), active.Origin())
	if err != nil {
		WriteError(recorder, ErrorBody{
			Status:        http.StatusBadRequest,
			RequestID:     requestID,
			ErrorCategory: "bad_request",
			Message:       err.Error(),
			Version:       logCtx.Version,
		})
		return
	}
	logCtx.URL = outbound.URL.String()

	if ok {
		result, err := active.Fetch(outbound.Context(), outbound)
		logCtx.Class = result.Class.String()
		switch {
		case err == nil && result.Response != nil:
			logCtx.Source = string(result.Source)
			logCtx.CacheStatus = cacheStatus(result.Source)
			h.Engine.WriteResponse(recorder, result.Response, requestID, logCtx.CacheStatus)
			return
		case err == nil:
		case errors.Is(err, worker.ErrNotReady):
		default:
			logCtx.Source = "network"
			logCtx.CacheStatus = "miss"
			h.writeNetworkError(recorder, outbound, requestID, logCtx.Version, err)
			return
		}
	}

	logCtx.Source = string(worker.SourcePassthrough)
	logCtx.CacheStatus = "bypass"
	resp, err := h.Engine.Forward(outbound)
	if err != nil {
		h.writeNetworkError(recorder, outbound, requestID, logCtx.Version, err)
		return
	}
	h.Engine.WriteResponse(recorder, resp, requestID, logCtx.CacheStatus)
}

func (h *Handler) writeNetworkError(w http.ResponseWriter, outbound *http.Request, requestID string, version string, err error) {
	if isClientCanceled(outbound.Context()) {
		return
	}
	body := ErrorBody{
		Status:        http.StatusBadGateway,
		RequestID:     requestID,
		ErrorCategory: "network_error",
		Message:       "network request failed and no cached response exists",
		URL:           outbound.URL.String(),
		Version:       version,
	}
	if isTimeoutError(err) {
		body.Status = http.StatusGatewayTimeout
		body.ErrorCategory = "network_timeout"
		body.Message = "network request timed out"
	}
	WriteError(w, body)
}

func cacheStatus(source worker.Source) string {
	switch source {
	case worker.SourceCache:
		return "hit"
	case worker.SourceNetwork:
		return "miss"
	case worker.SourceOffline:
		return "offline"
	case worker.SourceFallback:
		return "fallback"
	default:
		return "bypass"
	}
}
