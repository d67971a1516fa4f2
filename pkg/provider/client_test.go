package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedProvider records every fetch attempt and delegates to a
// per-test function.
type scriptedProvider struct {
	mu       sync.Mutex
	attempts []CandidateRef
	fetch    func(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error)
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Search(ctx context.Context, keyword string, limit int) (*SearchResult, error) {
	return &SearchResult{Keyword: keyword}, nil
}

func (s *scriptedProvider) Fetch(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
	s.mu.Lock()
	s.attempts = append(s.attempts, ref)
	s.mu.Unlock()
	return s.fetch(ctx, ref)
}

func (s *scriptedProvider) recorded() []CandidateRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CandidateRef(nil), s.attempts...)
}

func TestFetch_BareNameResolutionOrder(t *testing.T) {
	sp := &scriptedProvider{}
	sp.fetch = func(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
		// Only the final literal-handle form resolves.
		if len(sp.recorded()) < 3 {
			return nil, ErrNotFound
		}
		return &ChannelMetadata{ChannelID: "UCHnyfMqiRRG1u-2MsSQLbXA", Title: "found"}, nil
	}

	client := NewClient(sp, time.Second)
	meta, err := client.Fetch(context.Background(), "veritasium")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Title != "found" {
		t.Errorf("title = %q, want found", meta.Title)
	}

	want := []CandidateRef{
		{Raw: "@veritasium", Kind: RefHandle},
		{Raw: "veritasium", Kind: RefChannelID},
		{Raw: "veritasium", Kind: RefHandle},
	}
	got := sp.recorded()
	if len(got) != len(want) {
		t.Fatalf("attempts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("attempt %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFetch_NotFoundAfterAllForms(t *testing.T) {
	sp := &scriptedProvider{}
	sp.fetch = func(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
		return nil, ErrNotFound
	}

	client := NewClient(sp, time.Second)
	_, err := client.Fetch(context.Background(), "ghostchannel")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := len(sp.recorded()); n != 3 {
		t.Errorf("tried %d forms, want 3", n)
	}

	var fe *FetchError
	if !errors.As(err, &fe) || fe.Ref != "ghostchannel" {
		t.Errorf("error should carry the original ref, got %v", err)
	}
}

func TestFetch_OnlyNotFoundFallsThrough(t *testing.T) {
	sp := &scriptedProvider{}
	sp.fetch = func(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
		return nil, ErrRateLimited
	}

	client := NewClient(sp, time.Second)
	if _, err := client.Fetch(context.Background(), "somename"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if n := len(sp.recorded()); n != 1 {
		t.Errorf("tried %d forms after a non-NotFound failure, want 1", n)
	}
}

func TestFetch_UnambiguousRefsSingleAttempt(t *testing.T) {
	sp := &scriptedProvider{}
	sp.fetch = func(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
		return nil, ErrNotFound
	}
	client := NewClient(sp, time.Second)

	for _, raw := range []string{"@veritasium", "UCHnyfMqiRRG1u-2MsSQLbXA"} {
		sp.mu.Lock()
		sp.attempts = nil
		sp.mu.Unlock()

		if _, err := client.Fetch(context.Background(), raw); !errors.Is(err, ErrNotFound) {
			t.Fatalf("fetch %q: %v", raw, err)
		}
		if n := len(sp.recorded()); n != 1 {
			t.Errorf("ref %q tried %d forms, want 1", raw, n)
		}
	}
}

func TestFetch_DeadlineMapsToTimeout(t *testing.T) {
	sp := &scriptedProvider{}
	sp.fetch = func(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	client := NewClient(sp, 20*time.Millisecond)
	_, err := client.Fetch(context.Background(), "UCHnyfMqiRRG1u-2MsSQLbXA")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestStats_TracksOutcomes(t *testing.T) {
	sp := &scriptedProvider{}
	var fail bool
	sp.fetch = func(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
		if fail {
			return nil, ErrParse
		}
		return &ChannelMetadata{ChannelID: ref.Raw}, nil
	}
	client := NewClient(sp, time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.Fetch(ctx, "UCHnyfMqiRRG1u-2MsSQLbXA"); err != nil {
			t.Fatal(err)
		}
	}
	fail = true
	if _, err := client.Fetch(ctx, "UCHnyfMqiRRG1u-2MsSQLbXA"); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}

	stats := client.Stats()
	if stats.TotalRequests != 3 || stats.SuccessCount != 2 || stats.FailureCount != 1 {
		t.Errorf("stats = %+v, want 3 total / 2 ok / 1 failed", stats)
	}
	if rate := stats.SuccessRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("success rate = %v, want 2/3", rate)
	}
	if stats.LastChecked.IsZero() {
		t.Error("last checked not updated")
	}
}

func TestWaitBackoff_BlocksAfterRateLimit(t *testing.T) {
	sp := &scriptedProvider{}
	sp.fetch = func(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
		return nil, ErrRateLimited
	}
	client := NewClient(sp, time.Second)

	if _, err := client.Fetch(context.Background(), "UCHnyfMqiRRG1u-2MsSQLbXA"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	attempts := len(sp.recorded())

	// The backoff window is now open; a short-deadline call gives up
	// waiting without reaching the provider.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := client.Fetch(ctx, "UCHnyfMqiRRG1u-2MsSQLbXA")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context deadline", err)
	}
	if n := len(sp.recorded()); n != attempts {
		t.Errorf("provider reached during backoff: %d calls, want %d", n, attempts)
	}
}
