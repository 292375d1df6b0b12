//go:build !ci

package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/livetemplate/walkthrough/internal/content"
	"github.com/livetemplate/walkthrough/internal/logging"
)

// TestBrowserNumberWidget drives the built-in elements page: a number below
// the widget's minimum is clamped, the live block below it re-renders over the socket, and
// the value survives a page reload.
func TestBrowserNumberWidget(t *testing.T) {
	if testing.Short() {
		t.Skip("browser test")
	}

	srv, err := New(content.FS(), WithRegistry(content.Registry()), WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	if err := srv.Discover(); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	ctx := newBrowser(t, 90*time.Second)

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev := ev.(type) {
		case *cdpruntime.EventExceptionThrown:
			t.Logf("[Browser Error] %s", ev.ExceptionDetails.Text)
		case *network.EventWebSocketFrameSent:
			t.Logf("[WebSocket ->] %s", ev.Response.PayloadData)
		}
	})

	pageURL := browserURL(ts.URL) + "/elements"
	var connected, clamped, reloaded bool
	var liveText string

	err = chromedp.Run(ctx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(`#number`, chromedp.ByID),
		chromedp.Poll(`document.body.classList.contains("wt-connected")`, &connected, chromedp.WithPollingTimeout(10*time.Second)),

		chromedp.SetValue(`#number-input`, "-5", chromedp.ByID),
		chromedp.Click(`#number .wt-apply`, chromedp.ByQuery),
		chromedp.Poll(`document.querySelector('#number output').textContent === "0"`, &clamped, chromedp.WithPollingTimeout(10*time.Second)),
		chromedp.Text(`#number-demo .wt-output`, &liveText, chromedp.ByQuery),

		chromedp.Reload(),
		chromedp.WaitVisible(`#number`, chromedp.ByID),
		chromedp.Poll(`document.querySelector('#number output').textContent === "0"`, &reloaded, chromedp.WithPollingTimeout(10*time.Second)),
	)
	if err != nil {
		t.Fatalf("browser run failed: %v", err)
	}

	if !clamped {
		t.Error("number widget did not show the clamped value")
	}
	if !strings.Contains(liveText, "The current number is") || strings.Contains(liveText, "10") {
		t.Errorf("live block text = %q, want the clamped value 0", liveText)
	}
	if !reloaded {
		t.Error("value was lost on reload")
	}
}
