package fetcher

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/accesscheck/pkg/fetcher"
)

// challenge is a recognisable interstitial. Markers are matched against the
// lower-cased title and markup.
type challenge struct {
	kind    string
	captcha bool
	title   []string
	html    []string
}

// Order matters: Cloudflare pages embed Turnstile and sometimes hCaptcha
// markers, so the broader Cloudflare check runs first.
var challenges = []challenge{
	{kind: "cloudflare", title: []string{"just a moment", "attention required"}, html: []string{"cf-challenge", "cf_chl_opt"}},
	{kind: "cloudflare-turnstile", captcha: true, html: []string{"challenges.cloudflare.com/turnstile", "cf-turnstile"}},
	{kind: "hcaptcha", captcha: true, html: []string{"hcaptcha.com", "h-captcha"}},
	{kind: "recaptcha", captcha: true, html: []string{"google.com/recaptcha", "g-recaptcha"}},
	{kind: "anti-bot", title: []string{"access denied", "bot detection"}, html: []string{"robot or human"}},
}

// detectChallengePage returns the matching challenge, or nil.
func detectChallengePage(title, html string) *challenge {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	for i := range challenges {
		c := &challenges[i]
		if containsAny(titleLower, c.title) || containsAny(htmlLower, c.html) {
			return c
		}
	}
	return nil
}

// err returns the sentinel-wrapped error for the challenge.
func (c *challenge) err() error {
	if c.captcha {
		return fmt.Errorf("%w: %s", fetcher.ErrCaptchaChallenge, c.kind)
	}
	return fmt.Errorf("%w: %s", fetcher.ErrAntiBot, c.kind)
}

// checkChallenge returns a blocking error when detection is enabled and the
// page is an interstitial.
func checkChallenge(cfg Config, url, title, html string) error {
	if !cfg.DetectChallenges {
		return nil
	}
	c := detectChallengePage(title, html)
	if c == nil {
		return nil
	}
	return fetcher.Wrap(url, c.err())
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
