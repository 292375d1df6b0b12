//go:build !ci

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	chromeImage           = "chromedp/headless-shell:stable"
	chromeContainerPrefix = "chrome-e2e-walkthrough-"
	chromeStartTimeout    = 60 * time.Second
)

// chromeContainer is a headless Chrome running in Docker.
type chromeContainer struct {
	name string
	port int
}

// newBrowser starts Chrome in Docker and returns a chromedp context bound to
// it. The test is skipped when Docker is unavailable. Everything is torn down
// through t.Cleanup.
func newBrowser(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	if _, err := exec.Command("docker", "version").CombinedOutput(); err != nil {
		t.Skip("Docker not available, skipping browser test")
	}

	port, err := freePort()
	if err != nil {
		t.Fatalf("Failed to allocate Chrome port: %v", err)
	}
	c := &chromeContainer{name: fmt.Sprintf("%s%d", chromeContainerPrefix, port), port: port}
	if err := c.start(t); err != nil {
		t.Fatalf("Failed to start Chrome: %v", err)
	}
	t.Cleanup(func() { c.stop(t) })

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), fmt.Sprintf("http://localhost:%d", port))
	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(t.Logf))
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	t.Cleanup(func() {
		timeoutCancel()
		ctxCancel()
		allocCancel()
	})
	return ctx
}

func (c *chromeContainer) start(t *testing.T) error {
	t.Helper()
	_, _ = exec.Command("docker", "rm", "-f", c.name).CombinedOutput()

	if _, err := exec.Command("docker", "image", "inspect", chromeImage).CombinedOutput(); err != nil {
		t.Logf("Pulling %s...", chromeImage)
		ctx, cancel := context.WithTimeout(context.Background(), chromeStartTimeout)
		defer cancel()
		if out, err := exec.CommandContext(ctx, "docker", "pull", chromeImage).CombinedOutput(); err != nil {
			return fmt.Errorf("docker pull: %w\n%s", err, out)
		}
	}

	// Linux shares the host network; elsewhere Docker runs in a VM, so the
	// container's default 9222 is mapped instead.
	args := []string{"run", "-d", "--rm", "--memory", "512m", "--name", c.name}
	if runtime.GOOS == "linux" {
		args = append(args, "--network", "host", chromeImage, fmt.Sprintf("--remote-debugging-port=%d", c.port))
	} else {
		args = append(args, "-p", fmt.Sprintf("%d:9222", c.port), chromeImage)
	}
	if out, err := exec.Command("docker", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("docker run: %w\n%s", err, out)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	versionURL := fmt.Sprintf("http://localhost:%d/json/version", c.port)
	deadline := time.Now().Add(chromeStartTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := client.Get(versionURL)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}

	if out, err := exec.Command("docker", "logs", "--tail", "50", c.name).CombinedOutput(); err == nil {
		t.Logf("Chrome container logs:\n%s", out)
	}
	c.stop(t)
	return fmt.Errorf("chrome not ready after %v: %w", chromeStartTimeout, lastErr)
}

func (c *chromeContainer) stop(t *testing.T) {
	t.Helper()
	out, err := exec.Command("docker", "rm", "-f", c.name).CombinedOutput()
	if err != nil && !strings.Contains(string(out), "No such container") {
		t.Logf("Warning: failed to remove %s: %v (%s)", c.name, err, out)
	}
}

// freePort asks the kernel for a free open port that is ready to use.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// browserURL rewrites an httptest URL so Chrome in Docker can reach it.
func browserURL(serverURL string) string {
	host := "localhost"
	if runtime.GOOS != "linux" {
		host = "host.docker.internal"
	}
	u := strings.Replace(serverURL, "127.0.0.1", host, 1)
	return strings.Replace(u, "[::1]", host, 1)
}
