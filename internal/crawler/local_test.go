package crawler

import (
	"net/url"
	"testing"
)

func TestTargetURL(t *testing.T) {
	t.Parallel()
	got, err := targetURL("?url=https%3A%2F%2Fexample.com%2Fabout&search=Jane%20Doe")
	if err != nil {
		t.Fatalf("targetURL: %v", err)
	}
	if got != "https://example.com/about" {
		t.Fatalf("got %q", got)
	}

	if _, err := targetURL("?search=Jane"); err == nil {
		t.Fatalf("expected error for endpoint without url parameter")
	}
}

func TestNormalizeHref(t *testing.T) {
	t.Parallel()
	base, _ := url.Parse("https://example.com/people/jane")
	cases := []struct {
		name string
		href string
		want string
	}{
		{"absolute", "https://x.com/jane", "https://x.com/jane"},
		{"relative", "/about", "https://example.com/about"},
		{"fragment stripped", "https://example.com/a#top", "https://example.com/a"},
		{"javascript dropped", "javascript:void(0)", ""},
		{"anchor dropped", "#section", ""},
		{"mailto dropped", "mailto:jane@example.com", ""},
		{"empty", "  ", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := normalizeHref(base, tc.href); got != tc.want {
				t.Fatalf("normalizeHref(%q) = %q, want %q", tc.href, got, tc.want)
			}
		})
	}
}
