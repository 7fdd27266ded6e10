package bgremoval

import "image"

// Trim returns a copy of img cropped to the smallest rectangle holding every
// pixel with alpha above threshold. A fully transparent image is returned
// uncropped.
func Trim(img *image.NRGBA, threshold uint8) *image.NRGBA {
	r, ok := ContentBounds(img, threshold)
	if !ok {
		return clone(img)
	}
	return toNRGBA(img.SubImage(r))
}

// ContentBounds returns the bounding rectangle of pixels with alpha above
// threshold
func ContentBounds(img *image.NRGBA, threshold uint8) (image.Rectangle, bool) {
	if img == nil {
		return image.Rectangle{}, false
	}
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			if row[4*x+3] <= threshold {
				continue
			}
			px := b.Min.X + x
			minX, maxX = min(minX, px), max(maxX, px)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX || maxY < minY {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// rotateCCW returns img turned a quarter turn counterclockwise: the pixel at
// (x, y) moves to (y, w-1-x)
func rotateCCW(img *image.NRGBA) *image.NRGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			d := dst.PixOffset(y, w-1-x)
			copy(dst.Pix[d:d+4], img.Pix[s:s+4])
		}
	}
	return dst
}
