package codec

import (
	"encoding/binary"
	"fmt"
	"image"
)

// rawHeaderSize - ширина и высота кадра, по uint16 каждая.
const rawHeaderSize = 4

// Raw - кодек-заглушка без сжатия: пиксели RGBA с маленьким заголовком
// размера. Используется в loopback-сценариях и тестах, где настоящий
// VP8 кодек не подключен.
type Raw struct{}

func NewRaw() *Raw { return &Raw{} }

func (*Raw) Encode(img *image.RGBA) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || w > 0xFFFF || h > 0xFFFF {
		return nil, fmt.Errorf("raw encode: bad dimensions %dx%d", w, h)
	}

	out := make([]byte, rawHeaderSize+w*h*4)
	binary.BigEndian.PutUint16(out[0:2], uint16(w))
	binary.BigEndian.PutUint16(out[2:4], uint16(h))

	// Копируем построчно: Stride может быть шире строки.
	row := w * 4
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+row]
		copy(out[rawHeaderSize+y*row:], src)
	}

	return out, nil
}

func (*Raw) Decode(data []byte) (*image.RGBA, error) {
	if len(data) < rawHeaderSize {
		return nil, fmt.Errorf("raw decode: short frame (%d bytes)", len(data))
	}

	w := int(binary.BigEndian.Uint16(data[0:2]))
	h := int(binary.BigEndian.Uint16(data[2:4]))
	if w <= 0 || h <= 0 || len(data) != rawHeaderSize+w*h*4 {
		return nil, fmt.Errorf("raw decode: size mismatch for %dx%d", w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, data[rawHeaderSize:])

	return img, nil
}
