package dnsinject

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/torosent/trafficgen/internal/schedule"
)

type fakeResolver struct {
	mu      sync.Mutex
	calls   []string
	servers []string
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, host, server string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, host)
	f.servers = append(f.servers, server)
	if f.err != nil {
		return nil, f.err
	}
	return []string{"192.0.2.1"}, nil
}

func TestShouldQueryZeroFrequencyNeverFires(t *testing.T) {
	inj := New([]string{"8.8.8.8", "1.1.1.1"}, &fakeResolver{}, schedule.NewRand(1), nil)
	for i := 0; i < 10_000; i++ {
		if inj.ShouldQuery(0) {
			t.Fatalf("trial %d: ShouldQuery(0) returned true", i)
		}
	}
}

func TestShouldQueryFullFrequencyAlwaysFires(t *testing.T) {
	inj := New([]string{"8.8.8.8"}, &fakeResolver{}, schedule.NewRand(1), nil)
	for i := 0; i < 10_000; i++ {
		if !inj.ShouldQuery(100) {
			t.Fatalf("trial %d: ShouldQuery(100) returned false", i)
		}
	}
}

func TestShouldQueryWithoutResolvers(t *testing.T) {
	inj := New(nil, &fakeResolver{}, schedule.NewRand(1), nil)
	for i := 0; i < 1000; i++ {
		if inj.ShouldQuery(100) {
			t.Fatal("ShouldQuery returned true with no resolvers configured")
		}
	}
}

func TestShouldQueryApproximatesFrequency(t *testing.T) {
	inj := New([]string{"8.8.8.8"}, &fakeResolver{}, schedule.NewRand(99), nil)
	hits := 0
	const trials = 20_000
	for i := 0; i < trials; i++ {
		if inj.ShouldQuery(30) {
			hits++
		}
	}
	ratio := float64(hits) / trials
	if ratio < 0.25 || ratio > 0.35 {
		t.Fatalf("hit ratio %.3f not near 0.30", ratio)
	}
}

func TestPickTargetStripsSchemeAndWWW(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.com", "example.com"},
		{"http://example.org/path?q=1", "example.org"},
		{"https://api.example.net:8443/", "api.example.net"},
		{"http://www.sub.example.io", "sub.example.io"},
		{"HTTPS://WWW.Example.com/path", "example.com"},
	}
	for _, tt := range tests {
		inj := New([]string{"8.8.8.8"}, &fakeResolver{}, schedule.NewRand(1), nil)
		if got := inj.PickTarget([]string{tt.url}); got != tt.want {
			t.Errorf("PickTarget(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestPickResolverSpreadsAcrossServers(t *testing.T) {
	servers := []string{"8.8.8.8", "1.1.1.1", "9.9.9.9"}
	inj := New(servers, &fakeResolver{}, schedule.NewRand(5), nil)
	seen := map[string]int{}
	for i := 0; i < 600; i++ {
		seen[inj.PickResolver()]++
	}
	for _, s := range servers {
		if seen[s] == 0 {
			t.Errorf("resolver %s never picked", s)
		}
	}

	single := New([]string{"10.0.0.53"}, &fakeResolver{}, schedule.NewRand(5), nil)
	if got := single.PickResolver(); got != "10.0.0.53" {
		t.Fatalf("PickResolver() = %q, want 10.0.0.53", got)
	}
}

func TestQueryFailureIsReportedNotFatal(t *testing.T) {
	boom := errors.New("nxdomain")
	res := &fakeResolver{err: boom}
	inj := New([]string{"8.8.8.8"}, res, schedule.NewRand(1), nil)

	lookup, issued := inj.MaybeQuery(context.Background(), 100, []string{"https://www.example.com"})
	if !issued {
		t.Fatal("expected a query at 100% frequency")
	}
	var resErr *ResolutionError
	if !errors.As(lookup.Err, &resErr) {
		t.Fatalf("Err = %v, want *ResolutionError", lookup.Err)
	}
	if !errors.Is(lookup.Err, boom) {
		t.Fatalf("ResolutionError does not wrap cause: %v", lookup.Err)
	}
	if resErr.Host != "example.com" || resErr.Server != "8.8.8.8" {
		t.Fatalf("unexpected error fields: %+v", resErr)
	}
}

func TestMaybeQuerySkipsAtZero(t *testing.T) {
	res := &fakeResolver{}
	inj := New([]string{"8.8.8.8"}, res, schedule.NewRand(1), nil)
	for i := 0; i < 100; i++ {
		if _, issued := inj.MaybeQuery(context.Background(), 0, []string{"https://example.com"}); issued {
			t.Fatal("query issued at 0% frequency")
		}
	}
	if len(res.calls) != 0 {
		t.Fatalf("resolver called %d times", len(res.calls))
	}
}

func TestServerAddress(t *testing.T) {
	tests := map[string]string{
		"8.8.8.8":          "8.8.8.8:53",
		"8.8.8.8:5353":     "8.8.8.8:5353",
		"2001:4860::8888":  "[2001:4860::8888]:53",
		"[2001:db8::1]:53": "[2001:db8::1]:53",
	}
	for in, want := range tests {
		if got := ServerAddress(in); got != want {
			t.Errorf("ServerAddress(%q) = %q, want %q", in, got, want)
		}
	}
}
