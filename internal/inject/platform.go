package inject

import "errors"

// ErrUnsupportedPlatform возвращается, когда бинарь собран без
// платформенного бэкенда инъекции ввода.
var ErrUnsupportedPlatform = errors.New("no input injection backend for this platform")

// NewSystemInjector возвращает injector текущей платформы.
// Платформенные реализации подключаются build-тегами.
func NewSystemInjector() (Injector, error) {
	return nil, ErrUnsupportedPlatform
}
