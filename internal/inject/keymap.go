package inject

// Клавиши пересылаются каноническими именами (KeyboardEvent.code),
// хост отображает их в пространство виртуальных клавиш Windows.
// Неизвестное имя молча отбрасывается, канал при этом не страдает.

var virtualKeys = map[string]uint8{
	// Буквы.
	"KeyA": 0x41, "KeyB": 0x42, "KeyC": 0x43, "KeyD": 0x44,
	"KeyE": 0x45, "KeyF": 0x46, "KeyG": 0x47, "KeyH": 0x48,
	"KeyI": 0x49, "KeyJ": 0x4A, "KeyK": 0x4B, "KeyL": 0x4C,
	"KeyM": 0x4D, "KeyN": 0x4E, "KeyO": 0x4F, "KeyP": 0x50,
	"KeyQ": 0x51, "KeyR": 0x52, "KeyS": 0x53, "KeyT": 0x54,
	"KeyU": 0x55, "KeyV": 0x56, "KeyW": 0x57, "KeyX": 0x58,
	"KeyY": 0x59, "KeyZ": 0x5A,

	// Цифровой ряд.
	"Digit0": 0x30, "Digit1": 0x31, "Digit2": 0x32, "Digit3": 0x33,
	"Digit4": 0x34, "Digit5": 0x35, "Digit6": 0x36, "Digit7": 0x37,
	"Digit8": 0x38, "Digit9": 0x39,

	// Управляющие.
	"Backspace": 0x08, "Tab": 0x09, "Enter": 0x0D, "Escape": 0x1B,
	"Space": 0x20, "CapsLock": 0x14,
	"ShiftLeft": 0xA0, "ShiftRight": 0xA1,
	"ControlLeft": 0xA2, "ControlRight": 0xA3,
	"AltLeft": 0xA4, "AltRight": 0xA5,
	"MetaLeft": 0x5B, "MetaRight": 0x5C,
	"ContextMenu": 0x5D,

	// Навигация.
	"ArrowLeft": 0x25, "ArrowUp": 0x26, "ArrowRight": 0x27, "ArrowDown": 0x28,
	"Home": 0x24, "End": 0x23, "PageUp": 0x21, "PageDown": 0x22,
	"Insert": 0x2D, "Delete": 0x2E,
	"PrintScreen": 0x2C, "ScrollLock": 0x91, "Pause": 0x13,

	// Функциональные.
	"F1": 0x70, "F2": 0x71, "F3": 0x72, "F4": 0x73,
	"F5": 0x74, "F6": 0x75, "F7": 0x76, "F8": 0x77,
	"F9": 0x78, "F10": 0x79, "F11": 0x7A, "F12": 0x7B,

	// Numpad.
	"Numpad0": 0x60, "Numpad1": 0x61, "Numpad2": 0x62, "Numpad3": 0x63,
	"Numpad4": 0x64, "Numpad5": 0x65, "Numpad6": 0x66, "Numpad7": 0x67,
	"Numpad8": 0x68, "Numpad9": 0x69,
	"NumpadMultiply": 0x6A, "NumpadAdd": 0x6B, "NumpadSubtract": 0x6D,
	"NumpadDecimal": 0x6E, "NumpadDivide": 0x6F, "NumLock": 0x90,

	// Пунктуация (US раскладка).
	"Semicolon": 0xBA, "Equal": 0xBB, "Comma": 0xBC, "Minus": 0xBD,
	"Period": 0xBE, "Slash": 0xBF, "Backquote": 0xC0,
	"BracketLeft": 0xDB, "Backslash": 0xDC, "BracketRight": 0xDD,
	"Quote": 0xDE,
}

// LookupKey возвращает виртуальный код для канонического имени клавиши.
func LookupKey(name string) (uint8, bool) {
	code, ok := virtualKeys[name]
	return code, ok
}
