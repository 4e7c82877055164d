package inject

// Injector - внешний коллаборатор инъекции ввода на хосте.
// Вызовы обязаны быть быстрыми: они выполняются в callback'е
// управляющего канала.
type Injector interface {
	// MoveCursor перемещает курсор в абсолютные пиксельные координаты.
	MoveCursor(x, y int) error

	// MouseButton нажимает (down=true) или отпускает кнопку
	// "left", "right" или "middle".
	MouseButton(button string, down bool) error

	// Wheel прокручивает колесо на delta.
	Wheel(delta int) error

	// Key нажимает или отпускает клавишу по виртуальному коду.
	Key(code uint8, down bool) error
}
