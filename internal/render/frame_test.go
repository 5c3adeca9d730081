package render

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testFrameConfig() FrameConfig {
	return FrameConfig{MinHeight: 100, FallbackHeight: 300}
}

func constHeight(h int) Measurer {
	return MeasurerFunc(func(context.Context, string) (int, error) { return h, nil })
}

func TestFrame_InitialStateIsEmpty(t *testing.T) {
	f := NewFrame(constHeight(500), testFrameConfig(), zap.NewNop())
	assert.Equal(t, FrameEmpty, f.State())
	assert.Zero(t, f.Height())
}

func TestFrame_LoadRendersAndAppliesMinimum(t *testing.T) {
	tests := []struct {
		name     string
		measured int
		want     int
	}{
		{"tall content", 640, 640},
		{"short content", 20, 100},
		{"zero height", 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFrame(constHeight(tt.measured), testFrameConfig(), zap.NewNop())
			state := f.Load(context.Background(), "<p>x</p>")
			assert.Equal(t, FrameRendered, state)
			assert.Equal(t, tt.want, f.Height())
		})
	}
}

func TestFrame_MeasurementErrorUsesFallback(t *testing.T) {
	failing := MeasurerFunc(func(context.Context, string) (int, error) {
		return 0, errors.New("detached document")
	})
	f := NewFrame(failing, testFrameConfig(), zap.NewNop())

	state := f.Load(context.Background(), "<p>x</p>")
	assert.Equal(t, FrameError, state)
	assert.Equal(t, 300, f.Height())
}

func TestFrame_MeasurementPanicUsesFallback(t *testing.T) {
	panicking := MeasurerFunc(func(context.Context, string) (int, error) {
		panic("boom")
	})
	f := NewFrame(panicking, testFrameConfig(), zap.NewNop())

	require.NotPanics(t, func() { f.Load(context.Background(), "<p>x</p>") })
	assert.Equal(t, FrameError, f.State())
	assert.Equal(t, 300, f.Height())
}

func TestFrame_NewContentRestartsCycle(t *testing.T) {
	failing := true
	m := MeasurerFunc(func(context.Context, string) (int, error) {
		if failing {
			return 0, errors.New("fail")
		}
		return 420, nil
	})
	f := NewFrame(m, testFrameConfig(), zap.NewNop())

	assert.Equal(t, FrameError, f.Load(context.Background(), "<p>a</p>"))

	assert.Equal(t, FrameEmpty, f.Load(context.Background(), "   "))
	assert.Zero(t, f.Height())

	failing = false
	assert.Equal(t, FrameRendered, f.Load(context.Background(), "<p>b</p>"))
	assert.Equal(t, 420, f.Height())
}

func TestFrame_SettleRemeasures(t *testing.T) {
	var calls atomic.Int32
	m := MeasurerFunc(func(context.Context, string) (int, error) {
		n := calls.Add(1)
		return 200 * int(n), nil
	})
	cfg := testFrameConfig()
	cfg.SettleDelays = []time.Duration{5 * time.Millisecond, 15 * time.Millisecond}
	f := NewFrame(m, cfg, zap.NewNop())
	defer f.Close()

	require.Equal(t, FrameRendered, f.Load(context.Background(), "<p>x</p>"))
	assert.Equal(t, 200, f.Height())

	assert.Eventually(t, func() bool { return f.Height() == 600 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, FrameRendered, f.State())
}

func TestFrame_SettleFailureKeepsHeight(t *testing.T) {
	var calls atomic.Int32
	m := MeasurerFunc(func(context.Context, string) (int, error) {
		if calls.Add(1) == 1 {
			return 480, nil
		}
		return 0, errors.New("layout gone")
	})
	cfg := testFrameConfig()
	cfg.SettleDelays = []time.Duration{time.Millisecond}
	f := NewFrame(m, cfg, zap.NewNop())
	defer f.Close()

	f.Load(context.Background(), "<p>x</p>")

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, FrameRendered, f.State())
	assert.Equal(t, 480, f.Height())
}

func TestFrame_StaleSettleIsIgnored(t *testing.T) {
	m := MeasurerFunc(func(_ context.Context, doc string) (int, error) {
		if doc == "<p>old</p>" {
			return 900, nil
		}
		return 250, nil
	})
	cfg := testFrameConfig()
	cfg.SettleDelays = []time.Duration{20 * time.Millisecond}
	f := NewFrame(m, cfg, zap.NewNop())
	defer f.Close()

	f.Load(context.Background(), "<p>old</p>")
	f.Load(context.Background(), "<p>new</p>")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 250, f.Height())
}

func TestFrame_SupersededLoadIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := MeasurerFunc(func(_ context.Context, doc string) (int, error) {
		if doc == "<p>slow</p>" {
			close(started)
			<-release
			return 999, nil
		}
		return 150, nil
	})
	f := NewFrame(m, testFrameConfig(), zap.NewNop())

	done := make(chan FrameState)
	go func() { done <- f.Load(context.Background(), "<p>slow</p>") }()
	<-started

	f.Load(context.Background(), "<p>fast</p>")
	close(release)
	<-done

	assert.Equal(t, FrameRendered, f.State())
	assert.Equal(t, 150, f.Height())
}

func TestFrameState_MarshalText(t *testing.T) {
	b, err := FrameError.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "error", string(b))
	assert.Equal(t, "frame_state(9)", FrameState(9).String())

	var decoded FrameState
	require.NoError(t, decoded.UnmarshalText([]byte("rendered")))
	assert.Equal(t, FrameRendered, decoded)
	assert.Error(t, decoded.UnmarshalText([]byte("gone")))
}
