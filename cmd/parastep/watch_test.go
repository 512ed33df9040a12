// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parastep/parastep/internal/config"
	"github.com/parastep/parastep/internal/testutil"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, buf *syncBuffer, substr string, count int) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Count(buf.String(), substr) >= count {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d x %q in:\n%s", count, substr, buf.String())
}

func TestRunWatch(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Log.Level = config.LogLevelError
	stdout := &syncBuffer{}
	app := NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		Stdout: stdout,
		Stderr: &syncBuffer{},
	})

	planPath := writePlan(t, "batch.cue", manifestPlan)
	dir := filepath.Dir(planPath)

	root := NewRootCommand(app)
	root.SilenceErrors = true
	root.SetArgs([]string{"run", planPath, "--watch"})

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- root.ExecuteContext(ctx) }()

	const summary = "2 invocations: 2 succeeded"
	waitFor(t, stdout, "Watching", 1)
	waitFor(t, stdout, summary, 1)

	testutil.MustWriteFile(t, filepath.Join(dir, "main.go"), "package main\n")
	waitFor(t, stdout, summary, 2)

	// The manifest rewritten by the second run must not trigger a third.
	time.Sleep(time.Second)
	if got := strings.Count(stdout.String(), summary); got != 2 {
		t.Errorf("plan ran %d times, want 2:\n%s", got, stdout.String())
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("run --watch returned %v after cancellation", err)
	}
}
