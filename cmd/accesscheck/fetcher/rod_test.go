package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"

	"github.com/jmylchreest/accesscheck/pkg/fetcher"
)

// stallingClient is a CDP client that never answers until its call context
// ends.
type stallingClient struct {
	methods []string
}

func (c *stallingClient) Event() <-chan *cdp.Event { return make(chan *cdp.Event) }

func (c *stallingClient) Call(ctx context.Context, _, method string, _ interface{}) ([]byte, error) {
	c.methods = append(c.methods, method)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, errors.New("call outlived the fetch timeout")
	}
}

func TestRodFetch_OpenPageHonoursTimeout(t *testing.T) {
	client := &stallingClient{}
	f := &RodFetcher{
		config:  Config{Timeout: 50 * time.Millisecond}.withDefaults(),
		browser: rod.New().Client(client),
	}

	start := time.Now()
	_, err := f.Fetch(context.Background(), "https://example.org/slow", fetcher.Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if !fetcher.IsFetchError(err) {
		t.Errorf("error = %T, want fetch error", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fetch took %v", elapsed)
	}
	if len(client.methods) == 0 || client.methods[0] != "Target.createTarget" {
		t.Errorf("methods = %v, want Target.createTarget first", client.methods)
	}
}
