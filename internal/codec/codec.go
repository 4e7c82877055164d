package codec

import "image"

// Encoder - внешний видеокодек на стороне хоста.
//
// Encode может легитимно вернуть (nil, nil): кодек буферизует вход и
// не выдал кадр на этой итерации.
type Encoder interface {
	Encode(img *image.RGBA) ([]byte, error)
}

// Decoder - внешний видеокодек на стороне клиента.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}
