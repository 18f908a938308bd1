package cache

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// BuildKey normalizes a request into its cache key: method plus absolute URL.
// Requests that differ only in scheme/host case, default port or fragment share a key.
func BuildKey(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return KeyFor(req.Method, req.URL)
}

func KeyFor(method string, u *url.URL) string {
	if u == nil {
		return ""
	}
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}
	normalized := NormalizeURL(u)

	var builder strings.Builder
	builder.Grow(len(method) + len(normalized) + 6)
	builder.WriteString("m=")
	builder.WriteString(method)
	builder.WriteString("|u=")
	builder.WriteString(normalized)
	return builder.String()
}

// URLFromKey returns the URL half of a key built by KeyFor.
func URLFromKey(key string) (string, bool) {
	idx := strings.Index(key, "|u=")
	if idx < 0 {
		return "", false
	}
	return key[idx+3:], true
}

func NormalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if h, port, err := net.SplitHostPort(host); err == nil {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
			if strings.Contains(h, ":") {
				host = "[" + h + "]"
			}
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var builder strings.Builder
	builder.Grow(len(scheme) + len(host) + len(path) + len(u.RawQuery) + 4)
	if scheme != "" {
		builder.WriteString(scheme)
		builder.WriteString("://")
	}
	builder.WriteString(host)
	builder.WriteString(path)
	if u.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(u.RawQuery)
	}
	return builder.String()
}
