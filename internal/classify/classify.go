package classify

import (
	"net/http"
	"net/url"
	"strings"
)

type Class int

const (
	// Ignored requests are passed through and never touch the cache layer.
	Ignored Class = iota
	StaticAsset
	APICall
	Navigation
	// Uncached requests are answered from cache when an entry exists but are never stored.
	Uncached
)

func (c Class) String() string {
	switch c {
	case Ignored:
		return "ignored"
	case StaticAsset:
		return "static-asset"
	case APICall:
		return "api-call"
	case Navigation:
		return "navigation"
	case Uncached:
		return "uncached"
	default:
		return "unknown"
	}
}

// Cacheable reports whether responses of this class are written to a generation.
func (c Class) Cacheable() bool {
	return c == StaticAsset || c == APICall
}

type Rules struct {
	StaticSegments   []string
	StaticExtensions []string
	ImageCDNOrigins  []string
	APIPrefixes      []string
}

type Classifier struct {
	staticSegments   []string
	staticExtensions []string
	imageCDNOrigins  map[string]struct{}
	apiPrefixes      []string
}

func New(rules Rules) *Classifier {
	c := &Classifier{imageCDNOrigins: make(map[string]struct{}, len(rules.ImageCDNOrigins))}
	for _, segment := range rules.StaticSegments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		c.staticSegments = append(c.staticSegments, segment)
	}
	for _, ext := range rules.StaticExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.staticExtensions = append(c.staticExtensions, ext)
	}
	for _, origin := range rules.ImageCDNOrigins {
		if normalized, ok := NormalizeOrigin(origin); ok {
			c.imageCDNOrigins[normalized] = struct{}{}
		}
	}
	for _, prefix := range rules.APIPrefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		c.apiPrefixes = append(c.apiPrefixes, prefix)
	}
	return c
}

// Classify is total: every request maps to exactly one class. Rules are
// evaluated in a fixed order: pass-through, static asset, api call, navigation.
func (c *Classifier) Classify(req *http.Request) Class {
	if req == nil || req.URL == nil {
		return Ignored
	}
	if req.Method != http.MethodGet {
		return Ignored
	}
	scheme := strings.ToLower(req.URL.Scheme)
	if scheme != "http" && scheme != "https" {
		return Ignored
	}
	if c == nil {
		return Uncached
	}
	if c.isStatic(req.URL) {
		return StaticAsset
	}
	if c.isAPI(req.URL) {
		return APICall
	}
	if IsNavigation(req) {
		return Navigation
	}
	return Uncached
}

func (c *Classifier) isStatic(u *url.URL) bool {
	path := u.Path
	for _, segment := range c.staticSegments {
		if strings.Contains(path, segment) {
			return true
		}
	}
	lowerPath := strings.ToLower(path)
	for _, ext := range c.staticExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return true
		}
	}
	if origin, ok := OriginOf(u); ok {
		if _, found := c.imageCDNOrigins[origin]; found {
			return true
		}
	}
	return false
}

func (c *Classifier) isAPI(u *url.URL) bool {
	full := u.String()
	for _, prefix := range c.apiPrefixes {
		if strings.Contains(full, prefix) {
			return true
		}
	}
	return false
}

// IsNavigation reports whether req loads a full page document.
func IsNavigation(req *http.Request) bool {
	if req == nil || req.Method != http.MethodGet {
		return false
	}
	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return strings.EqualFold(mode, "navigate")
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

// OriginOf returns scheme://host with the default port removed.
func OriginOf(u *url.URL) (string, bool) {
	if u == nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, true
}

func NormalizeOrigin(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return OriginOf(parsed)
}
