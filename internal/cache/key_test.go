package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKeyNormalizesURL(t *testing.T) {
	cases := []struct {
		name   string
		method string
		target string
		want   string
	}{
		{"plain", http.MethodGet, "https://Site.Example/icons/a.png", "m=GET|u=https://site.example/icons/a.png"},
		{"default https port", http.MethodGet, "https://site.example:443/", "m=GET|u=https://site.example/"},
		{"default http port", http.MethodGet, "http://site.example:80/x", "m=GET|u=http://site.example/x"},
		{"custom port kept", http.MethodGet, "http://site.example:8080/x", "m=GET|u=http://site.example:8080/x"},
		{"query kept", http.MethodGet, "https://site.example/api/projects?page=2", "m=GET|u=https://site.example/api/projects?page=2"},
		{"fragment dropped", http.MethodGet, "https://site.example/blog#top", "m=GET|u=https://site.example/blog"},
		{"method upper-cased", "get", "https://site.example/", "m=GET|u=https://site.example/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// http.NewRequest keeps "#top" in URL.Fragment; a request-URI parse would not.
			req, err := http.NewRequest(http.MethodGet, tc.target, nil)
			require.NoError(t, err)
			req.Method = tc.method
			assert.Equal(t, tc.want, BuildKey(req))
		})
	}
}

func TestBuildKeyKeepsEscapedHash(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://site.example/blog%23top", nil)
	require.NoError(t, err)
	assert.Equal(t, "m=GET|u=https://site.example/blog%23top", BuildKey(req))
}

func TestBuildKeyNilRequest(t *testing.T) {
	assert.Equal(t, "", BuildKey(nil))
}

func TestURLFromKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://site.example/api/projects", nil)
	u, ok := URLFromKey(BuildKey(req))
	assert.True(t, ok)
	assert.Equal(t, "https://site.example/api/projects", u)

	_, ok = URLFromKey("garbage")
	assert.False(t, ok)
}
