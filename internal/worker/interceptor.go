package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"offline_worker/internal/cache"
	"offline_worker/internal/classify"
	"offline_worker/internal/offline"
)

type Source string

const (
	// SourcePassthrough means the worker declined the request; the caller forwards it.
	SourcePassthrough Source = "passthrough"
	SourceCache       Source = "cache"
	SourceNetwork     Source = "network"
	SourceOffline     Source = "offline"
	SourceFallback    Source = "fallback"
)

type Result struct {
	Response *http.Response
	Class    classify.Class
	Source   Source
	// Stored reports whether the network response was written to a generation.
	Stored bool
}

type ResponseType int

const (
	ResponseBasic ResponseType = iota
	ResponseCORS
	ResponseOpaque
)

func (t ResponseType) String() string {
	switch t {
	case ResponseBasic:
		return "basic"
	case ResponseCORS:
		return "cors"
	default:
		return "opaque"
	}
}

// Fetch answers req cache-first. A nil error always comes with a response,
// except for pass-through requests.
func (w *Worker) Fetch(ctx context.Context, req *http.Request) (Result, error) {
	if w == nil {
		return Result{}, ErrNotReady
	}
	class := w.classifier.Classify(req)
	if class == classify.Ignored {
		return Result{Class: class, Source: SourcePassthrough}, nil
	}
	if w.State() != StateReady {
		return Result{Class: class}, ErrNotReady
	}

	key := cache.BuildKey(req)
	if entry, ok := w.match(ctx, key); ok {
		w.metrics.RecordCacheLookup(true)
		return Result{Response: entry.Response(req), Class: class, Source: SourceCache}, nil
	}
	w.metrics.RecordCacheLookup(false)

	resp, stored, err := w.fetchAndStore(ctx, req, class, key)
	if err != nil {
		w.metrics.RecordNetworkError(class.String())
		return w.recoverFromNetworkFailure(ctx, req, class, key, err)
	}
	return Result{Response: resp, Class: class, Source: SourceNetwork, Stored: stored}, nil
}

// ResponseType derives the response type for req from its origin.
func (w *Worker) ResponseType(req *http.Request) ResponseType {
	if w == nil || req == nil || req.URL == nil {
		return ResponseOpaque
	}
	origin, ok := classify.OriginOf(req.URL)
	if !ok {
		return ResponseOpaque
	}
	if self, ok := classify.OriginOf(w.origin); ok && self == origin {
		return ResponseBasic
	}
	if _, ok := w.allowed[origin]; ok {
		return ResponseCORS
	}
	return ResponseOpaque
}

func (w *Worker) cacheable(req *http.Request, resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusOK {
		return false
	}
	return w.ResponseType(req) != ResponseOpaque
}

// match looks in the static generation first, then the dynamic one.
func (w *Worker) match(ctx context.Context, key string) (cache.Entry, bool) {
	static, dynamic := w.generations()
	for _, gen := range []cache.Generation{static, dynamic} {
		if gen == nil {
			continue
		}
		entry, ok, err := gen.Get(ctx, key)
		if err != nil {
			w.log.WithError(err).WithField("generation", gen.Name()).Debug("cache lookup failed")
			continue
		}
		if ok {
			return entry, true
		}
	}
	return cache.Entry{}, false
}

func (w *Worker) fetchAndStore(ctx context.Context, req *http.Request, class classify.Class, key string) (*http.Response, bool, error) {
	if w.coalescer == nil || !class.Cacheable() {
		return w.fetchNetwork(ctx, req, class, key)
	}
	flight, leader, ok := w.coalescer.Start(key)
	if !ok {
		return w.fetchNetwork(ctx, req, class, key)
	}
	if !leader {
		entry, err, done := w.coalescer.Wait(ctx, flight)
		if !done {
			return nil, false, &NetworkError{URL: req.URL.String(), Err: ctx.Err()}
		}
		// The leader's client went away; that says nothing about the network.
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return w.fetchNetwork(ctx, req, class, key)
		}
		if err != nil {
			return nil, false, err
		}
		return entry.Response(req), false, nil
	}

	resp, stored, err := w.fetchNetwork(ctx, req, class, key)
	if err != nil {
		w.coalescer.Finish(key, flight, cache.Entry{}, err)
		return nil, false, err
	}
	body, err := bufferBody(resp)
	if err != nil {
		netErr := &NetworkError{URL: req.URL.String(), Err: err}
		w.coalescer.Finish(key, flight, cache.Entry{}, netErr)
		return nil, false, netErr
	}
	w.coalescer.Finish(key, flight, cache.NewEntry(resp, body), nil)
	return resp, stored, nil
}

func (w *Worker) fetchNetwork(ctx context.Context, req *http.Request, class classify.Class, key string) (*http.Response, bool, error) {
	resp, err := w.network.RoundTrip(req.WithContext(ctx))
	if err != nil {
		return nil, false, &NetworkError{URL: req.URL.String(), Err: err}
	}
	if !class.Cacheable() || !w.cacheable(req, resp) {
		return resp, false, nil
	}
	body, err := bufferBody(resp)
	if err != nil {
		return nil, false, &NetworkError{URL: req.URL.String(), Err: err}
	}
	return resp, w.store(ctx, class, key, cache.NewEntry(resp, body)), nil
}

// store writes entry to the generation owning class. Failures never reach
// the caller; the live response is still returned.
func (w *Worker) store(ctx context.Context, class classify.Class, key string, entry cache.Entry) bool {
	static, dynamic := w.generations()
	gen, role := dynamic, w.cfg.Generations.DynamicRole
	if class == classify.StaticAsset {
		gen, role = static, w.cfg.Generations.StaticRole
	}
	if gen == nil {
		return false
	}
	if err := gen.Put(ctx, key, entry); err != nil {
		w.metrics.RecordCacheStoreFail(role)
		w.log.WithError(err).WithField("key", key).Warn("cache write failed")
		return false
	}
	return true
}

func (w *Worker) recoverFromNetworkFailure(ctx context.Context, req *http.Request, class classify.Class, key string, cause error) (Result, error) {
	if entry, ok := w.match(ctx, key); ok {
		return Result{Response: entry.Response(req), Class: class, Source: SourceFallback}, nil
	}
	if class != classify.Navigation {
		return Result{Class: class}, cause
	}
	if entry, ok := w.offlineEntry(ctx); ok {
		return Result{Response: entry.Response(req), Class: class, Source: SourceFallback}, nil
	}
	resp, err := offline.Response(req, w.page)
	if err != nil {
		return Result{Class: class}, errors.Join(cause, err)
	}
	return Result{Response: resp, Class: class, Source: SourceOffline}, nil
}

func (w *Worker) offlineEntry(ctx context.Context) (cache.Entry, bool) {
	if w.cfg.Offline.CachedPath == "" {
		return cache.Entry{}, false
	}
	target, err := resolve(w.origin, w.cfg.Offline.CachedPath)
	if err != nil {
		return cache.Entry{}, false
	}
	return w.match(ctx, cache.KeyFor(http.MethodGet, target))
}

// bufferBody reads resp.Body fully and replaces it with a rewindable copy.
func bufferBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return body, nil
}
