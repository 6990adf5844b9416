package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStaticFetcher_Fetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>  Reader
			page </title></head><body><div class="t-page-nav-arrows"></div></body></html>`)
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{})
	content, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if content.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", content.StatusCode)
	}
	if content.Title != "Reader page" {
		t.Errorf("expected normalised title, got %q", content.Title)
	}
	if content.URL != srv.URL {
		t.Errorf("expected URL %q, got %q", srv.URL, content.URL)
	}
	if content.FetchedAt.IsZero() {
		t.Error("expected FetchedAt to be set")
	}
}

func TestStaticFetcher_Fetch_ErrorStatusKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><body>Log in to the e-Duke Books Scholarly Collection site</body></html>`)
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{})
	content, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if content.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", content.StatusCode)
	}
	if content.HTML == "" {
		t.Error("expected body of error response")
	}
}

func TestStaticFetcher_Fetch_SendsHeaders(t *testing.T) {
	var gotUA, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotHeader = r.Header.Get("X-Library")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{UserAgent: "config-agent"})
	_, err := f.Fetch(context.Background(), srv.URL, Options{
		UserAgent: "option-agent",
		Headers:   map[string]string{"X-Library": "main"},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if gotUA != "option-agent" {
		t.Errorf("expected per-fetch user agent to win, got %q", gotUA)
	}
	if gotHeader != "main" {
		t.Errorf("expected custom header, got %q", gotHeader)
	}
}

func TestStaticFetcher_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err == nil {
		t.Fatal("expected timeout error")
	}

	if !IsFetchError(err) {
		t.Errorf("expected *FetchError, got %T", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestStaticFetcher_Fetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := NewStatic(StaticConfig{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), addr, Options{})
	if err == nil {
		t.Fatal("expected error for closed server")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.URL != addr {
		t.Errorf("expected URL %q, got %q", addr, fe.URL)
	}
}

func TestStaticFetcher_Type(t *testing.T) {
	if got := NewStatic(StaticConfig{}).Type(); got != "static" {
		t.Errorf("Type() = %q, want static", got)
	}
}

func TestNewStatic_Defaults(t *testing.T) {
	f := NewStatic(StaticConfig{})
	if f.config.UserAgent != DefaultUserAgent {
		t.Errorf("expected default user agent, got %q", f.config.UserAgent)
	}
	if f.config.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %v", f.config.Timeout)
	}
}

func TestWrap(t *testing.T) {
	if Wrap("http://x", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	inner := &FetchError{URL: "http://a", Err: errors.New("boom")}
	if got := Wrap("http://b", fmt.Errorf("context: %w", inner)); !errors.Is(got, inner) {
		t.Errorf("expected existing FetchError to pass through, got %v", got)
	}

	err := Wrap("http://slow", context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected timeout to wrap both sentinels, got %v", err)
	}

	err = Wrap("http://blocked", fmt.Errorf("%w: cloudflare", ErrAntiBot))
	if !Blocked(err) {
		t.Errorf("expected Blocked() for anti-bot error, got %v", err)
	}
	if Blocked(Wrap("http://x", errors.New("dns"))) {
		t.Error("plain failure should not be reported as blocked")
	}
}
