package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrMeasurePanic is returned when a Measurer panics.
var ErrMeasurePanic = errors.New("measurer panicked")

// FrameState is the lifecycle state of an isolated frame.
type FrameState int

const (
	FrameEmpty FrameState = iota
	FrameLoading
	FrameRendered
	FrameError
)

func (s FrameState) String() string {
	switch s {
	case FrameEmpty:
		return "empty"
	case FrameLoading:
		return "loading"
	case FrameRendered:
		return "rendered"
	case FrameError:
		return "error"
	default:
		return fmt.Sprintf("frame_state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s FrameState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *FrameState) UnmarshalText(text []byte) error {
	for candidate := FrameEmpty; candidate <= FrameError; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown frame state %q", text)
}

// Measurer reports the height in pixels a document needs to show without scrolling.
type Measurer interface {
	Measure(ctx context.Context, doc string) (int, error)
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(ctx context.Context, doc string) (int, error)

// Measure calls f.
func (f MeasurerFunc) Measure(ctx context.Context, doc string) (int, error) {
	return f(ctx, doc)
}

// FrameConfig sizes a Frame.
type FrameConfig struct {
	MinHeight      int
	FallbackHeight int
	// SettleDelays schedules re-measurements after a successful load, for
	// content whose layout shifts once images and fonts arrive.
	SettleDelays []time.Duration
}

// Frame tracks one isolated document through Empty, Loading, Rendered and
// Error, together with the height applied to its container.
//
// Every Load starts a new generation. Measurements that finish after a newer
// Load are discarded.
type Frame struct {
	cfg      FrameConfig
	measurer Measurer
	logger   *zap.Logger

	mu         sync.Mutex
	state      FrameState
	height     int
	generation uint64
	timers     []*time.Timer
}

// NewFrame creates a Frame in the Empty state.
func NewFrame(measurer Measurer, cfg FrameConfig, logger *zap.Logger) *Frame {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Frame{
		cfg:      cfg,
		measurer: measurer,
		logger:   logger,
	}
}

// Load replaces the frame's document and measures it. Empty documents return
// the frame to Empty. The returned state is the one reached by this call.
func (f *Frame) Load(ctx context.Context, doc string) FrameState {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.stopTimersLocked()

	if strings.TrimSpace(doc) == "" {
		f.state = FrameEmpty
		f.height = 0
		f.mu.Unlock()
		return FrameEmpty
	}
	f.state = FrameLoading
	f.mu.Unlock()

	height, err := f.measure(ctx, doc)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.generation {
		return f.state
	}

	if err != nil {
		f.logger.Warn("Frame measurement failed, using fallback height",
			zap.Error(err),
			zap.Int("fallback_height", f.cfg.FallbackHeight))
		f.state = FrameError
		f.height = f.cfg.FallbackHeight
		return f.state
	}

	f.state = FrameRendered
	f.height = f.clamp(height)

	settleCtx := context.WithoutCancel(ctx)
	for _, delay := range f.cfg.SettleDelays {
		f.timers = append(f.timers, time.AfterFunc(delay, func() {
			f.settle(settleCtx, gen, doc)
		}))
	}
	return f.state
}

// settle re-measures a rendered document. A failure keeps the last good height.
func (f *Frame) settle(ctx context.Context, gen uint64, doc string) {
	f.mu.Lock()
	current := gen == f.generation && f.state == FrameRendered
	f.mu.Unlock()
	if !current {
		return
	}

	height, err := f.measure(ctx, doc)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.generation || f.state != FrameRendered {
		return
	}
	if err != nil {
		f.logger.Debug("Settle measurement failed, keeping height",
			zap.Error(err),
			zap.Int("height", f.height))
		return
	}
	f.height = f.clamp(height)
}

func (f *Frame) measure(ctx context.Context, doc string) (height int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMeasurePanic, r)
		}
	}()
	if f.measurer == nil {
		return 0, errors.New("no measurer configured")
	}
	return f.measurer.Measure(ctx, doc)
}

func (f *Frame) clamp(height int) int {
	if height < f.cfg.MinHeight {
		return f.cfg.MinHeight
	}
	return height
}

// State returns the current state.
func (f *Frame) State() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Height returns the height currently applied to the container.
func (f *Frame) Height() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height
}

// Close cancels pending settle measurements.
func (f *Frame) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimersLocked()
}

func (f *Frame) stopTimersLocked() {
	for _, t := range f.timers {
		t.Stop()
	}
	f.timers = nil
}
