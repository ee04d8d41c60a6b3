package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestNewClientKeepsCookiesPerClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewClient(5 * time.Second)
	b := NewClient(5 * time.Second)

	status := func(c *http.Client) int {
		t.Helper()
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		resp, err := c.Do(req)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := status(a); got != http.StatusCreated {
		t.Fatalf("first visit status = %d, want 201", got)
	}
	if got := status(a); got != http.StatusOK {
		t.Fatalf("second visit status = %d, want 200 (cookie replayed)", got)
	}
	if got := status(b); got != http.StatusCreated {
		t.Fatalf("other client status = %d, want 201 (no shared jar)", got)
	}
}

func TestNewClientNegativeTimeout(t *testing.T) {
	if c := NewClient(-time.Second); c.Timeout != 0 {
		t.Fatalf("Timeout = %v, want 0", c.Timeout)
	}
}

func TestReadBodyDecodes(t *testing.T) {
	const page = "<html><body>hello</body></html>"

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(page))
	zw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte(page))
	bw.Close()

	tests := []struct {
		encoding string
		payload  []byte
	}{
		{"", []byte(page)},
		{"gzip", gz.Bytes()},
		{"br", br.Bytes()},
	}
	for _, tt := range tests {
		t.Run("encoding="+tt.encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Write(tt.payload)
			}))
			defer srv.Close()

			resp, err := NewClient(time.Second).Get(srv.URL)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			defer resp.Body.Close()
			body, err := ReadBody(resp)
			if err != nil {
				t.Fatalf("ReadBody() error = %v", err)
			}
			if string(body) != page {
				t.Fatalf("body = %q, want %q", body, page)
			}
		})
	}
}

func TestDecodeBodyRejectsUnknownEncoding(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Content-Encoding": {"zstd"}}, Body: http.NoBody}
	if _, err := DecodeBody(resp); err == nil {
		t.Fatal("DecodeBody() error = nil, want error")
	}
}

func TestExtractAssets(t *testing.T) {
	base, _ := url.Parse("https://example.com/blog/post.html")
	page := []byte(`<!doctype html>
<html><head>
<link rel="stylesheet" href="/css/site.css">
<link rel="alternate" href="/feed.xml">
<link rel="icon" href="favicon.ico">
<script src="https://cdn.example.net/app.js"></script>
<script>inline()</script>
</head><body>
<img src="img/a.png"><img src="img/a.png#dup">
<img src="data:image/png;base64,AAAA">
<a href="/next">next</a>
</body></html>`)

	got := ExtractAssets(base, page)
	want := []string{
		"https://example.com/css/site.css",
		"https://example.com/blog/favicon.ico",
		"https://cdn.example.net/app.js",
		"https://example.com/blog/img/a.png",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractAssets() = %v, want %v", got, want)
	}
}
