package fetcher

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/accesscheck/pkg/fetcher"
)

func TestDetectChallengePage(t *testing.T) {
	tests := []struct {
		name  string
		title string
		html  string
		want  string
	}{
		{"cloudflare title", "Just a moment...", "<html></html>", "cloudflare"},
		{"cloudflare markup", "", `<script>window._cf_chl_opt={}</script>`, "cloudflare"},
		{"turnstile", "", `<div class="cf-turnstile"></div>`, "cloudflare-turnstile"},
		{"hcaptcha", "", `<script src="https://hcaptcha.com/1/api.js"></script>`, "hcaptcha"},
		{"recaptcha", "", `<div class="g-recaptcha"></div>`, "recaptcha"},
		{"access denied", "Access Denied", "", "anti-bot"},
		{"ordinary page", "Queer Times", `<div class="t-page-nav-arrows"></div>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectChallengePage(tt.title, tt.html)
			kind := ""
			if got != nil {
				kind = got.kind
			}
			if kind != tt.want {
				t.Errorf("detectChallengePage() = %q, want %q", kind, tt.want)
			}
		})
	}
}

func TestCheckChallenge(t *testing.T) {
	html := `<div class="g-recaptcha"></div>`

	if err := checkChallenge(Config{}, "https://x.org", "", html); err != nil {
		t.Errorf("expected no error with detection disabled, got %v", err)
	}

	err := checkChallenge(Config{DetectChallenges: true}, "https://x.org", "", html)
	if err == nil {
		t.Fatal("expected error with detection enabled")
	}
	if !errors.Is(err, fetcher.ErrCaptchaChallenge) {
		t.Errorf("expected ErrCaptchaChallenge, got %v", err)
	}
	if !fetcher.Blocked(err) || !fetcher.IsFetchError(err) {
		t.Errorf("expected blocked *FetchError, got %v", err)
	}

	err = checkChallenge(Config{DetectChallenges: true}, "https://x.org", "Just a moment...", "")
	if !errors.Is(err, fetcher.ErrAntiBot) {
		t.Errorf("expected ErrAntiBot, got %v", err)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.UserAgent != fetcher.DefaultUserAgent {
		t.Errorf("expected default user agent, got %q", cfg.UserAgent)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Timeout)
	}

	cfg = Config{UserAgent: "custom", Googlebot: true}.withDefaults()
	if cfg.UserAgent != GooglebotMobileUserAgent {
		t.Errorf("expected Googlebot to override user agent, got %q", cfg.UserAgent)
	}
}

func TestNew_Static(t *testing.T) {
	f, err := New(RendererStatic, Config{Timeout: time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer f.Close()

	if f.Type() != "static" {
		t.Errorf("Type() = %q, want static", f.Type())
	}
}

func TestNew_UnknownRenderer(t *testing.T) {
	_, err := New("webkit", Config{})
	if err == nil {
		t.Fatal("expected error for unknown renderer")
	}
	if !strings.Contains(err.Error(), "unknown renderer") {
		t.Errorf("unexpected error: %v", err)
	}
}
