package backlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type CounterMock struct{ mock.Mock }

func (m *CounterMock) CountUnprocessed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type GaugeMock struct{ mock.Mock }

func (m *GaugeMock) SetUnprocessedEvents(n int) {
	m.Called(n)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestReporter_Report(t *testing.T) {
	counter, gauge := &CounterMock{}, &GaugeMock{}
	counter.On("CountUnprocessed", mock.Anything).Return(3, nil).Once()
	gauge.On("SetUnprocessedEvents", 3).Once()

	NewReporter(counter, gauge, time.Minute, newNoopLogger()).report(context.Background())

	counter.AssertExpectations(t)
	gauge.AssertExpectations(t)
}

func TestReporter_ReportError(t *testing.T) {
	counter, gauge := &CounterMock{}, &GaugeMock{}
	counter.On("CountUnprocessed", mock.Anything).Return(0, errors.New("db down")).Once()

	NewReporter(counter, gauge, time.Minute, newNoopLogger()).report(context.Background())

	gauge.AssertNotCalled(t, "SetUnprocessedEvents", mock.Anything)
}

type tickCounter struct{ calls atomic.Int32 }

func (c *tickCounter) CountUnprocessed(_ context.Context) (int, error) {
	c.calls.Add(1)
	return 1, nil
}

type noopGauge struct{}

func (noopGauge) SetUnprocessedEvents(int) {}

func TestReporter_RunStopsOnCancel(t *testing.T) {
	counter := &tickCounter{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewReporter(counter, noopGauge{}, 10*time.Millisecond, newNoopLogger()).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return counter.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop after cancel")
	}
}
