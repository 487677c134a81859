package backend

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jonwraymond/toolfoundation/model"
)

// mockBackend implements Backend for testing.
//
//nolint:revive // test helper
type mockBackend struct {
	kind    string
	name    string
	enabled bool
	tools   []model.Tool
	execFn  func(ctx context.Context, tool string, args map[string]any) (any, error)
	stopErr error
	stops   atomic.Int32
}

func (m *mockBackend) Kind() string  { return m.kind }
func (m *mockBackend) Name() string  { return m.name }
func (m *mockBackend) Enabled() bool { return m.enabled }

func (m *mockBackend) ListTools(_ context.Context) ([]model.Tool, error) {
	return m.tools, nil
}

func (m *mockBackend) Execute(ctx context.Context, tool string, args map[string]any) (any, error) {
	if m.execFn != nil {
		return m.execFn(ctx, tool, args)
	}
	return nil, nil
}

func (m *mockBackend) Start(_ context.Context) error { return nil }

func (m *mockBackend) Stop() error {
	m.stops.Add(1)
	return m.stopErr
}

// mockStreamingBackend implements StreamingBackend for testing.
type mockStreamingBackend struct {
	mockBackend
	chunks []string
}

func (m *mockStreamingBackend) ExecuteStream(ctx context.Context, tool string, args map[string]any) (<-chan any, error) {
	if tool != "stream" {
		return nil, ErrToolNotFound
	}
	ch := make(chan any, len(m.chunks)+1)
	for _, c := range m.chunks {
		ch <- c
	}
	ch <- "done"
	close(ch)
	return ch, nil
}

var errStop = errors.New("stop failed")

var (
	_ Backend          = (*mockBackend)(nil)
	_ StreamingBackend = (*mockStreamingBackend)(nil)
)
