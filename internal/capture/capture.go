package capture

import (
	"fmt"
	"image"

	"github.com/avolkov/farview/internal/domain"
)

// Source - внешний коллаборатор захвата экрана. Реализации обращаются
// к примитивам ОС; ядро работает только через этот интерфейс.
//
// Screens перечисляет доступные экраны в стабильном порядке индексов.
// Список может меняться между вызовами: мониторы подключаются и
// отключаются, поэтому вызывающая сторона перепроверяет индекс
// на каждой итерации.
type Source interface {
	Screens() ([]domain.ScreenDescriptor, error)
	Capture(screenIndex int) (*image.RGBA, error)
}

// ErrScreenUnavailable возвращается реализациями, когда экран временно
// недоступен (например, во время экрана блокировки). Ошибка не фатальна:
// цикл захвата логирует и продолжает.
var ErrScreenUnavailable = fmt.Errorf("screen unavailable")
