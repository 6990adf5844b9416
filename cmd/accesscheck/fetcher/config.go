// Package fetcher provides the browser-backed page renderers used by the CLI:
// chromedp (default) and rod, with optional stealth evasion, Googlebot
// spoofing and challenge-page detection.
package fetcher

import (
	"fmt"
	"time"

	"github.com/jmylchreest/accesscheck/pkg/fetcher"
)

// Renderer names accepted by New.
const (
	RendererChromedp = "chromedp"
	RendererRod      = "rod"
	RendererStatic   = "static"
)

// Renderers lists the renderer names in display order.
var Renderers = []string{RendererChromedp, RendererRod, RendererStatic}

// Config holds configuration for the browser renderers.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	Stealth          bool   // Inject evasion scripts before navigation
	Googlebot        bool   // Spoof Googlebot user-agent
	DetectChallenges bool   // Fail fetches that land on a CAPTCHA or anti-bot page
	ChromePath       string // Browser binary; discovered when empty
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent: fetcher.DefaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

// withDefaults fills unset fields and applies the Googlebot override.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.Googlebot {
		c.UserAgent = GooglebotMobileUserAgent
	}
	return c
}

// GooglebotMobileUserAgent for mobile-first indexing.
const GooglebotMobileUserAgent = "Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X Build/MMB29P) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

// New creates the renderer called name. Browser renderers start their browser
// immediately so a missing or broken binary is reported before any URL is
// processed.
func New(name string, cfg Config) (fetcher.Fetcher, error) {
	cfg = cfg.withDefaults()

	switch name {
	case RendererChromedp, "":
		return NewChromedp(cfg)
	case RendererRod:
		return NewRod(cfg)
	case RendererStatic:
		return fetcher.NewStatic(fetcher.StaticConfig{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q (known: %s, %s, %s)", name, RendererChromedp, RendererRod, RendererStatic)
	}
}
