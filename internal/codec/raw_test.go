package codec

import (
	"image"
	"image/color"
	"testing"
)

func TestRawRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for y := 0; y < 18; y++ {
		for x := 0; x < 32; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: 200, A: 255})
		}
	}

	raw := NewRaw()

	data, err := raw.Encode(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := raw.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds %v, want %v", out.Bounds(), src.Bounds())
	}
	if out.RGBAAt(5, 9) != src.RGBAAt(5, 9) {
		t.Errorf("pixel mismatch: %v != %v", out.RGBAAt(5, 9), src.RGBAAt(5, 9))
	}
}

func TestRawDecodeRejectsGarbage(t *testing.T) {
	raw := NewRaw()

	if _, err := raw.Decode([]byte{1, 2}); err == nil {
		t.Error("short frame must fail")
	}
	if _, err := raw.Decode([]byte{0, 4, 0, 4, 1, 2, 3}); err == nil {
		t.Error("size mismatch must fail")
	}
}
