package offline

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIsSelfContained(t *testing.T) {
	body, err := Render(DefaultPage())
	require.NoError(t, err)
	html := string(body)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, `id="retry"`)
	assert.Contains(t, html, "window.location.reload()")
	assert.Contains(t, html, "Pages you have already visited")
	assert.NotContains(t, html, "<link")
	assert.NotContains(t, html, "src=")
}

func TestRenderEscapesContent(t *testing.T) {
	body, err := Render(Page{Available: []string{"<script>alert(1)</script>"}})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "<script>alert(1)</script>")
	assert.Contains(t, string(body), "You&#39;re offline")
}

func TestResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://site.example/blog", nil)
	resp, err := Response(req, Page{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(Header))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
	assert.Equal(t, int64(len(body)), resp.ContentLength)
}
