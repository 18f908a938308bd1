package proxy

import "net/http"

// ResponseRecorder remembers what the handler told the client so the access
// log can report it after the response is gone.
type ResponseRecorder struct {
	http.ResponseWriter
	status        int
	bytes         int64
	wroteHeader   bool
	cacheStatus   string
	errorCategory string
}

type errorCategoryWriter interface {
	SetErrorCategory(string)
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w}
}

func (r *ResponseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.cacheStatus = r.Header().Get(CacheStatusHeader)
	r.ResponseWriter.WriteHeader(status)
}

func (r *ResponseRecorder) Write(data []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += int64(n)
	return n, err
}

// Flush lets streamed origin bodies reach the client as they arrive.
func (r *ResponseRecorder) Flush() {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *ResponseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Status is 0 when nothing was written, which happens when the client went
// away before an answer was ready.
func (r *ResponseRecorder) Status() int {
	return r.status
}

func (r *ResponseRecorder) BytesWritten() int64 {
	return r.bytes
}

// CacheStatus is the X-Cache-Status value sent with the header, if any.
func (r *ResponseRecorder) CacheStatus() string {
	return r.cacheStatus
}

func (r *ResponseRecorder) SetErrorCategory(category string) {
	r.errorCategory = category
}

func (r *ResponseRecorder) ErrorCategory() string {
	return r.errorCategory
}
