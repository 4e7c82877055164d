package pipeline

import (
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/avolkov/farview/internal/capture"
	"github.com/avolkov/farview/internal/domain"
)

type countingEncoder struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	out   func(img *image.RGBA) ([]byte, error)
}

func (e *countingEncoder) Encode(img *image.RGBA) ([]byte, error) {
	e.mu.Lock()
	e.calls++
	delay := e.delay
	e.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if e.out != nil {
		return e.out(img)
	}
	return []byte{0xDE, 0xAD}, nil
}

func (e *countingEncoder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type frameSink struct {
	mu     sync.Mutex
	frames int
	lastTs uint32
}

func (s *frameSink) send(ts uint32, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.lastTs = ts
	return nil
}

func (s *frameSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func twoScreens() *capture.Fake {
	return capture.NewFake(
		domain.ScreenDescriptor{Index: 0, Width: 64, Height: 36, Label: "Display 1"},
		domain.ScreenDescriptor{Index: 1, Width: 48, Height: 48, Label: "Display 2"},
	)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func TestPipelineSingleFrameInFlight(t *testing.T) {
	src := twoScreens()
	src.Delay = 10 * time.Millisecond // медленный захват при коротком бюджете

	enc := &countingEncoder{delay: 15 * time.Millisecond}
	sink := &frameSink{}

	p := New(Config{
		Source:   src,
		Encoder:  enc,
		Send:     sink.send,
		Interval: 5 * time.Millisecond,
	})

	p.Start()
	time.Sleep(150 * time.Millisecond)
	p.Stop()

	if got := src.MaxInFlight(); got != 1 {
		t.Errorf("max captures in flight = %d, want 1", got)
	}
	if sink.Frames() == 0 {
		t.Error("no frames sent")
	}
	// Медленный кодек ограничивает темп; очередь кадров не растет.
	if sink.Frames() > 15 {
		t.Errorf("sent %d frames in 150ms with a 25ms iteration, backlog suspected", sink.Frames())
	}
}

func TestPipelinePacing(t *testing.T) {
	src := twoScreens()
	enc := &countingEncoder{}
	sink := &frameSink{}

	p := New(Config{
		Source:   src,
		Encoder:  enc,
		Send:     sink.send,
		Interval: 50 * time.Millisecond,
	})

	p.Start()
	time.Sleep(230 * time.Millisecond)
	p.Stop()

	frames := sink.Frames()
	if frames < 2 || frames > 8 {
		t.Errorf("sent %d frames in 230ms at 50ms interval", frames)
	}
}

func TestPipelineClampsOutOfRangeIndex(t *testing.T) {
	src := twoScreens()
	sink := &frameSink{}

	p := New(Config{
		Source:   src,
		Encoder:  &countingEncoder{},
		Send:     sink.send,
		Interval: 2 * time.Millisecond,
	})

	p.SetActiveScreen(99)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return len(src.Captured()) > 0 }, "first capture")

	for _, idx := range src.Captured() {
		if idx != 0 {
			t.Fatalf("captured index %d, want clamp to 0", idx)
		}
	}
	if got := p.ActiveScreen(); got != 0 {
		t.Errorf("active screen = %d, want 0", got)
	}

	p.SetActiveScreen(-3)
	if got := p.ActiveScreen(); got != 0 {
		t.Errorf("negative index stored as %d, want 0", got)
	}
}

func TestPipelineSwitchTakesEffectNextIteration(t *testing.T) {
	src := twoScreens()
	sink := &frameSink{}

	p := New(Config{
		Source:   src,
		Encoder:  &countingEncoder{},
		Send:     sink.send,
		Interval: 2 * time.Millisecond,
	})

	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return len(src.Captured()) > 0 }, "first capture")

	p.SetActiveScreen(1)

	waitFor(t, func() bool {
		for _, idx := range src.Captured() {
			if idx == 1 {
				return true
			}
		}
		return false
	}, "capture of screen 1 after switch")
}

func TestPipelineSelfHealsWhenScreensShrink(t *testing.T) {
	src := twoScreens()
	sink := &frameSink{}

	p := New(Config{
		Source:   src,
		Encoder:  &countingEncoder{},
		Send:     sink.send,
		Interval: 2 * time.Millisecond,
	})

	p.SetActiveScreen(1)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool {
		for _, idx := range src.Captured() {
			if idx == 1 {
				return true
			}
		}
		return false
	}, "capture of screen 1")

	// Монитор отключили: остался один экран.
	src.SetScreens(domain.ScreenDescriptor{Index: 0, Width: 64, Height: 36, Label: "Display 1"})

	waitFor(t, func() bool { return p.ActiveScreen() == 0 }, "reset to screen 0")
}

func TestPipelineSwallowsIterationErrors(t *testing.T) {
	src := twoScreens()
	sink := &frameSink{}
	enc := &countingEncoder{}

	p := New(Config{
		Source:   src,
		Encoder:  enc,
		Send:     sink.send,
		Interval: 2 * time.Millisecond,
	})

	src.Err = fmt.Errorf("display locked")

	p.Start()
	defer p.Stop()

	time.Sleep(20 * time.Millisecond)
	if sink.Frames() != 0 {
		t.Fatal("frames sent while capture was failing")
	}

	// Экран снова доступен - цикл продолжает без перезапуска.
	src.Err = nil
	waitFor(t, func() bool { return sink.Frames() > 0 }, "frames after capture recovered")
}

func TestPipelineEncoderMayProduceNothing(t *testing.T) {
	src := twoScreens()
	sink := &frameSink{}
	enc := &countingEncoder{out: func(*image.RGBA) ([]byte, error) { return nil, nil }}

	p := New(Config{
		Source:   src,
		Encoder:  enc,
		Send:     sink.send,
		Interval: 2 * time.Millisecond,
	})

	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return enc.Calls() > 3 }, "encoder calls")
	if sink.Frames() != 0 {
		t.Errorf("sent %d frames for nil encoder output, want 0", sink.Frames())
	}
}

func TestPipelineStartStopIdempotent(t *testing.T) {
	src := twoScreens()
	sink := &frameSink{}

	p := New(Config{
		Source:   src,
		Encoder:  &countingEncoder{},
		Send:     sink.send,
		Interval: 2 * time.Millisecond,
	})

	p.Stop() // до старта - no-op

	p.Start()
	p.Start() // повторный старт - no-op
	waitFor(t, func() bool { return sink.Frames() > 0 }, "frames")

	p.Stop()
	p.Stop()

	stopped := sink.Frames()
	time.Sleep(20 * time.Millisecond)
	if sink.Frames() != stopped {
		t.Error("frames kept flowing after Stop")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{3840, 2160, 1920, 1920, 1080},
		{2160, 3840, 1920, 1080, 1920},
		{1920, 1080, 1920, 1920, 1080},
		{640, 480, 1920, 640, 480},
		{1000, 500, 100, 100, 50},
	}

	for _, tt := range tests {
		src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
		got := Fit(src, tt.max)
		b := got.Bounds()
		if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("Fit(%dx%d, %d) = %dx%d, want %dx%d",
				tt.w, tt.h, tt.max, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestFitKeepsSmallFramesUntouched(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 320, 200))
	if got := Fit(src, 1920); got != src {
		t.Error("frame within the limit must be returned as is")
	}
}
