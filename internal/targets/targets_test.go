package targets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com", false},
		{"http://192.168.65.129:5601", false},
		{"https://example.com/path?x=1", false},
		{"HTTPS://WWW.Example.com/path", false},
		{"example.com", true},
		{"www.example.com/index.html", true},
		{"ftp://example.com", true},
		{"https://", true},
		{"", true},
		{"   ", true},
	}
	for _, tt := range tests {
		err := Validate(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateAllReportsEachBadEntry(t *testing.T) {
	issues := ValidateAll([]string{"https://ok.example", "example.com", "https://fine.example", "nope"})
	if len(issues) != 2 {
		t.Fatalf("issues = %v, want 2 entries", issues)
	}
}

func TestHostname(t *testing.T) {
	tests := map[string]string{
		"https://www.example.com":          "example.com",
		"http://example.com/a/b":           "example.com",
		"https://Example.COM:443/":         "example.com",
		"https://user:pw@host.example/":    "host.example",
		"http://www.wwwexample.com?query":  "wwwexample.com",
		"https://shop.example.co.uk/#frag": "shop.example.co.uk",
		"HTTPS://WWW.Example.com/path":     "example.com",
		"Http://Example.org:8080":          "example.org",
		"www.example.net/index.html":       "example.net",
		"http://[::1]:8080/":               "::1",
	}
	for in, want := range tests {
		if got := Hostname(in); got != want {
			t.Errorf("Hostname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{" https://a.example ", "", "https://b.example", "https://a.example"})
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize() = %v, want %v", got, want)
	}
}

func TestRobotsFilterDropsDisallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := RobotsFilter{Client: srv.Client()}
	got, err := f.Filter(context.Background(), []string{
		srv.URL + "/",
		srv.URL + "/private/page",
		srv.URL + "/public",
	})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	want := []string{srv.URL + "/", srv.URL + "/public"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Filter() = %v, want %v", got, want)
	}
}

func TestRobotsFilterAllowsWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := RobotsFilter{Client: srv.Client()}
	got, err := f.Filter(context.Background(), []string{srv.URL + "/anything"})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Filter() = %v, want the single target kept", got)
	}
}

func TestRobotsFilterAllDisallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
	}))
	defer srv.Close()

	f := RobotsFilter{Client: srv.Client()}
	_, err := f.Filter(context.Background(), []string{srv.URL + "/x"})
	if !errors.Is(err, ErrNoTargets) {
		t.Fatalf("Filter() error = %v, want ErrNoTargets", err)
	}
}
