package offline

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
)

const Header = "X-Offline"

type Page struct {
	Title      string
	Heading    string
	Message    string
	RetryLabel string
	Available  []string
}

func DefaultPage() Page {
	return Page{
		Title:      "Offline",
		Heading:    "You're offline",
		Message:    "The page could not be loaded. Check your connection and try again.",
		RetryLabel: "Try again",
		Available: []string{
			"Pages you have already visited",
			"Cached project and article listings",
			"Site icons and styles",
		},
	}
}

// The document must not reference anything outside itself.
var pageTemplate = template.Must(template.New("offline").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{margin:0;min-height:100vh;display:flex;align-items:center;justify-content:center;font-family:system-ui,-apple-system,sans-serif;background:#0f172a;color:#e2e8f0}
main{max-width:28rem;padding:2rem;text-align:center}
h1{font-size:1.75rem;margin:0 0 1rem}
p{line-height:1.5;color:#94a3b8}
ul{text-align:left;color:#cbd5e1;padding-left:1.25rem}
button{margin-top:1.5rem;padding:.75rem 1.5rem;border:0;border-radius:.5rem;background:#38bdf8;color:#0f172a;font-size:1rem;cursor:pointer}
</style>
</head>
<body>
<main>
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
{{- if .Available}}
<p>Still available offline:</p>
<ul>
{{- range .Available}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
<button type="button" id="retry" onclick="window.location.reload()">{{.RetryLabel}}</button>
</main>
</body>
</html>
`))

func Render(page Page) ([]byte, error) {
	page = withDefaults(page)
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render offline page: %w", err)
	}
	return buf.Bytes(), nil
}

// Response synthesizes a fresh offline document for req. It is never cached.
func Response(req *http.Request, page Page) (*http.Response, error) {
	body, err := Render(page)
	if err != nil {
		return nil, err
	}
	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Length", strconv.Itoa(len(body)))
	header.Set(Header, "1")
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

func withDefaults(page Page) Page {
	defaults := DefaultPage()
	if page.Title == "" {
		page.Title = defaults.Title
	}
	if page.Heading == "" {
		page.Heading = defaults.Heading
	}
	if page.Message == "" {
		page.Message = defaults.Message
	}
	if page.RetryLabel == "" {
		page.RetryLabel = defaults.RetryLabel
	}
	return page
}
