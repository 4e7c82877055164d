package domain

import (
	"errors"
	"math"
	"testing"
)

func TestControlRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Control
	}{
		{
			name: "input mousemove",
			in: InputControl{Event: InputEvent{
				EventType: EventMouseMove,
				X:         0.25,
				Y:         0.75,
			}},
		},
		{
			name: "input keydown",
			in: InputControl{Event: InputEvent{
				EventType: EventKeyDown,
				Key:       "Enter",
			}},
		},
		{
			name: "get screens",
			in:   GetScreensControl{},
		},
		{
			name: "screen info",
			in: ScreenInfoControl{Screens: []ScreenDescriptor{
				{Index: 0, Width: 1920, Height: 1080, Label: "Display 1"},
				{Index: 1, Width: 1280, Height: 1024, Label: "Display 2"},
			}},
		},
		{
			name: "switch screen",
			in:   SwitchScreenControl{Index: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeControl(tt.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			out, err := DecodeControl(raw)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			switch want := tt.in.(type) {
			case InputControl:
				got, ok := out.(InputControl)
				if !ok {
					t.Fatalf("got %T, want InputControl", out)
				}
				if got.Event != want.Event {
					t.Errorf("got event %+v, want %+v", got.Event, want.Event)
				}
			case ScreenInfoControl:
				got, ok := out.(ScreenInfoControl)
				if !ok {
					t.Fatalf("got %T, want ScreenInfoControl", out)
				}
				if len(got.Screens) != len(want.Screens) {
					t.Fatalf("got %d screens, want %d", len(got.Screens), len(want.Screens))
				}
				for i := range want.Screens {
					if got.Screens[i] != want.Screens[i] {
						t.Errorf("screen %d: got %+v, want %+v", i, got.Screens[i], want.Screens[i])
					}
				}
			case SwitchScreenControl:
				got, ok := out.(SwitchScreenControl)
				if !ok {
					t.Fatalf("got %T, want SwitchScreenControl", out)
				}
				if got.Index != want.Index {
					t.Errorf("got index %d, want %d", got.Index, want.Index)
				}
			case GetScreensControl:
				if _, ok := out.(GetScreensControl); !ok {
					t.Fatalf("got %T, want GetScreensControl", out)
				}
			}
		})
	}
}

func TestDecodeControlUnknownTag(t *testing.T) {
	_, err := DecodeControl([]byte(`{"type":"system:reboot"}`))
	if !errors.Is(err, ErrUnknownControl) {
		t.Fatalf("got %v, want ErrUnknownControl", err)
	}

	_, err = DecodeControl([]byte(`{"type":"control","payload":{"command":"self_destruct","value":3}}`))
	if !errors.Is(err, ErrUnknownControl) {
		t.Fatalf("got %v, want ErrUnknownControl", err)
	}
}

func TestDecodeControlMalformed(t *testing.T) {
	if _, err := DecodeControl([]byte(`{{{`)); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
	if _, err := DecodeControl([]byte(`{"type":"input","payload":"nope"}`)); err == nil {
		t.Fatal("expected error for malformed input payload")
	}
}

func TestMousePositionRoundTrip(t *testing.T) {
	screen := ScreenDescriptor{Index: 0, Width: 2560, Height: 1440}

	for _, p := range []struct{ px, py int }{
		{0, 0},
		{2559, 1439},
		{1280, 720},
		{17, 893},
	} {
		nx, ny := Normalize(p.px, p.py, screen.Width, screen.Height)
		if nx < 0 || nx > 1 || ny < 0 || ny > 1 {
			t.Fatalf("normalized out of range: %f, %f", nx, ny)
		}

		gx, gy := screen.Denormalize(nx, ny)
		if math.Abs(float64(gx-p.px)) > 1 || math.Abs(float64(gy-p.py)) > 1 {
			t.Errorf("round trip (%d,%d) -> (%d,%d)", p.px, p.py, gx, gy)
		}
	}
}

func TestSignalMessageEcho(t *testing.T) {
	msg := SignalMessage{Type: SignalOffer, SenderID: "abc"}

	if !msg.IsEcho("abc") {
		t.Error("message with matching senderId must be an echo")
	}
	if msg.IsEcho("def") {
		t.Error("message with different senderId must not be an echo")
	}
	if (SignalMessage{Type: SignalOffer}).IsEcho("") {
		t.Error("empty local id must never match")
	}
}
