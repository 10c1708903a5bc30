package mail

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatExpiry(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{30 * time.Minute, "30 minutes"},
		{0, "1 hour"},
	}
	for _, tc := range cases {
		if got := formatExpiry(tc.d); got != tc.want {
			t.Errorf("formatExpiry(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestInviteTemplatesRender(t *testing.T) {
	data := struct {
		Name, Role, Link, Code, Expiry string
	}{
		Name:   "Alice",
		Role:   "participant",
		Link:   "https://portal.example.org/invite/accept?token=abc",
		Code:   "XK7PQ2RM9T",
		Expiry: "1 hour",
	}

	var text bytes.Buffer
	if err := inviteText.Execute(&text, data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "XK7PQ2RM9T") || !strings.Contains(text.String(), "participant") {
		t.Fatalf("text body missing fields:\n%s", text.String())
	}

	var html bytes.Buffer
	if err := inviteHTML.Execute(&html, data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html.String(), `href="https://portal.example.org/invite/accept?token=abc"`) {
		t.Fatalf("html body missing link:\n%s", html.String())
	}
}
