// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bureau-foundation/projfs/lib/policy"
)

// fakePolicy projects files with one of the listed source extensions to
// ".ogg". Its transformation writes "projected:" followed by the input
// bytes, so outputs are distinguishable from sources and their sizes
// differ.
type fakePolicy struct {
	extensions []string

	// started, if set, receives the input path each time a
	// transformation begins.
	started chan string
	// gate, if set, blocks every transformation until closed.
	gate chan struct{}
	// during, if set, runs inside every transformation.
	during func()

	calls atomic.Int32

	mu sync.Mutex
	// failures is the number of upcoming transformations that fail.
	failures int
	// skipOutput makes transformations succeed without writing
	// anything.
	skipOutput bool
	perInput   map[string]int
}

var _ policy.Policy = (*fakePolicy)(nil)

func newFakePolicy(extensions ...string) *fakePolicy {
	if len(extensions) == 0 {
		extensions = []string{".wav"}
	}
	return &fakePolicy{extensions: extensions, perInput: make(map[string]int)}
}

func (p *fakePolicy) Classify(filePath string) policy.AccessType {
	for _, extension := range p.extensions {
		if strings.HasSuffix(filePath, extension) {
			return policy.Projected
		}
	}
	return policy.PassThrough
}

func (p *fakePolicy) RenameForDestination(filePath string) string {
	return policy.ReplaceExtension(filePath, "ogg")
}

func (p *fakePolicy) Transform(ctx context.Context, input, output string) error {
	p.calls.Add(1)
	if p.started != nil {
		p.started <- input
	}
	if p.gate != nil {
		<-p.gate
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.during != nil {
		p.during()
	}

	p.mu.Lock()
	p.perInput[path.Base(input)]++
	fail := p.failures > 0
	if fail {
		p.failures--
	}
	skip := p.skipOutput
	p.mu.Unlock()

	if fail {
		// Leave partial output behind; the manager must clean it up.
		os.WriteFile(output, []byte("partial"), 0o644)
		return errors.New("decoder exploded")
	}
	if skip {
		return nil
	}

	content, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append([]byte("projected:"), content...), 0o644)
}

func (p *fakePolicy) failNext(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = count
}

func (p *fakePolicy) callsFor(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perInput[name]
}

// testLogger returns a logger writing into a buffer the test can
// inspect, and dumps it on failure.
func testLogger(t *testing.T) (*slog.Logger, *lockedBuffer) {
	t.Helper()
	buffer := &lockedBuffer{}
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("log output:\n%s", buffer.String())
		}
	})
	logger := slog.New(slog.NewTextHandler(buffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, buffer
}

// lockedBuffer lets parallel materializations log into one buffer.
type lockedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}
