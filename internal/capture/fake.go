package capture

import (
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/avolkov/farview/internal/domain"
)

// Fake - источник захвата для тестов: отдает однотонные кадры размером
// с дескриптор экрана и протоколирует, какой индекс запрашивался.
type Fake struct {
	mu       sync.Mutex
	screens  []domain.ScreenDescriptor
	captured []int
	inFlight int
	maxSeen  int

	// Delay притормаживает каждый Capture - удобно моделировать
	// медленный экран.
	Delay time.Duration

	// Err, если установлена, возвращается из Capture.
	Err error
}

// NewFake создает источник с заданными экранами.
func NewFake(screens ...domain.ScreenDescriptor) *Fake {
	return &Fake{screens: screens}
}

func (f *Fake) Screens() ([]domain.ScreenDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ScreenDescriptor(nil), f.screens...), nil
}

// SetScreens подменяет список экранов на лету, как при подключении
// или отключении монитора.
func (f *Fake) SetScreens(screens ...domain.ScreenDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screens = append([]domain.ScreenDescriptor(nil), screens...)
}

func (f *Fake) Capture(screenIndex int) (*image.RGBA, error) {
	f.mu.Lock()
	if f.Err != nil {
		err := f.Err
		f.mu.Unlock()
		return nil, err
	}
	if screenIndex < 0 || screenIndex >= len(f.screens) {
		f.mu.Unlock()
		return nil, ErrScreenUnavailable
	}
	desc := f.screens[screenIndex]
	f.captured = append(f.captured, screenIndex)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	img := image.NewRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	fill := color.RGBA{R: uint8(40 * (screenIndex + 1)), G: 80, B: 120, A: 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = fill.R, fill.G, fill.B, fill.A
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	return img, nil
}

// Captured возвращает последовательность запрошенных индексов.
func (f *Fake) Captured() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.captured...)
}

// MaxInFlight возвращает максимум одновременных захватов.
func (f *Fake) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}
