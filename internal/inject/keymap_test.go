package inject

import "testing"

func TestLookupKey(t *testing.T) {
	tests := []struct {
		name string
		code uint8
	}{
		{"KeyA", 0x41},
		{"Digit9", 0x39},
		{"Enter", 0x0D},
		{"ShiftLeft", 0xA0},
		{"F12", 0x7B},
		{"ArrowDown", 0x28},
		{"NumpadAdd", 0x6B},
	}

	for _, tt := range tests {
		code, ok := LookupKey(tt.name)
		if !ok {
			t.Errorf("%s: not found", tt.name)
			continue
		}
		if code != tt.code {
			t.Errorf("%s: got 0x%02X, want 0x%02X", tt.name, code, tt.code)
		}
	}
}

func TestLookupKeyUnknown(t *testing.T) {
	for _, name := range []string{"", "Hyper", "KeyЯ", "F13"} {
		if _, ok := LookupKey(name); ok {
			t.Errorf("%q: expected miss", name)
		}
	}
}
