package pipeline

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Fit ужимает кадр так, чтобы длинная сторона не превышала maxLongEdge,
// сохраняя пропорции. Билинейный фильтр: скорость важнее качества.
// Кадр в пределах лимита возвращается как есть, без копии.
func Fit(img *image.RGBA, maxLongEdge int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	long := w
	if h > long {
		long = h
	}
	if maxLongEdge <= 0 || long <= maxLongEdge {
		return img
	}

	scale := float64(maxLongEdge) / float64(long)
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	return dst
}
