package capture

import "errors"

// ErrUnsupportedPlatform возвращается, когда бинарь собран без
// платформенного бэкенда захвата.
var ErrUnsupportedPlatform = errors.New("no screen capture backend for this platform")

// NewSystemSource возвращает источник захвата экранов текущей
// платформы. Платформенные реализации подключаются build-тегами;
// без них источник недоступен.
func NewSystemSource() (Source, error) {
	return nil, ErrUnsupportedPlatform
}
