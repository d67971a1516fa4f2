package provider

import (
	"errors"
	"testing"
	"time"
)

func TestParseRef(t *testing.T) {
	cases := []struct {
		raw  string
		want RefKind
	}{
		{"@veritasium", RefHandle},
		{"UCHnyfMqiRRG1u-2MsSQLbXA", RefChannelID},
		{"veritasium", RefName},
		{"  @spaced  ", RefHandle},
		{"UCshort", RefName},                     // too short for a channel ID
		{"XCHnyfMqiRRG1u-2MsSQLbXA", RefName},    // wrong prefix
		{"UCHnyfMqiRRG1u-2MsSQLbXA1", RefName},   // too long
		{"UCHnyfMqiRRG1u 2MsSQLbXA", RefName},    // invalid character
	}

	for _, tc := range cases {
		if got := ParseRef(tc.raw); got.Kind != tc.want {
			t.Errorf("ParseRef(%q).Kind = %s, want %s", tc.raw, got.Kind, tc.want)
		}
	}
}

func TestCandidateRefID(t *testing.T) {
	if got := (CandidateRef{Raw: "@handle", Kind: RefHandle}).ID(); got != "handle" {
		t.Errorf("ID() = %q, want handle", got)
	}
	if got := (CandidateRef{Raw: "UCHnyfMqiRRG1u-2MsSQLbXA", Kind: RefChannelID}).ID(); got != "UCHnyfMqiRRG1u-2MsSQLbXA" {
		t.Errorf("ID() = %q, channel IDs pass through", got)
	}
}

func TestIsKeyword(t *testing.T) {
	cases := []struct {
		seed string
		want bool
	}{
		{"cooking tutorials", true},
		{"woodworking\tbasics", true},
		{"veritasium", false},
		{"@veritasium", false},
		{"UCHnyfMqiRRG1u-2MsSQLbXA", false},
		{"  spaced out  ", true},
	}

	for _, tc := range cases {
		if got := IsKeyword(tc.seed); got != tc.want {
			t.Errorf("IsKeyword(%q) = %v, want %v", tc.seed, got, tc.want)
		}
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrTimeout, "timeout"},
		{ErrNotFound, "not_found"},
		{ErrRateLimited, "rate_limited"},
		{ErrParse, "parse_error"},
		{errors.New("boom"), "error"},
		{&FetchError{Ref: "x", At: time.Now(), Err: ErrTimeout}, "timeout"},
	}

	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	err := &FetchError{Ref: "@gone", At: time.Now(), Err: ErrNotFound}
	if !errors.Is(err, ErrNotFound) {
		t.Error("FetchError should unwrap to its sentinel")
	}
	var fe *FetchError
	if !errors.As(error(err), &fe) || fe.Ref != "@gone" {
		t.Error("errors.As should recover the failing ref")
	}
}
