package geometry

// Fit is the scale and centering offset that places an image inside a
// container while preserving its aspect ratio.
type Fit struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// FitInto computes the Fit of an imageW x imageH image into a containerW x
// containerH container. The binding axis fills the container; the other axis
// is centered. imageW and imageH must be non-zero.
func FitInto(imageW, imageH, containerW, containerH float64) Fit {
	ratioW := containerW / imageW
	ratioH := containerH / imageH
	if ratioW < ratioH {
		// Letterbox: width binds, height is centered
		return Fit{
			Scale:   ratioW,
			OffsetX: 0,
			OffsetY: (containerH - imageH*ratioW) / 2,
		}
	}
	return Fit{
		Scale:   ratioH,
		OffsetX: (containerW - imageW*ratioH) / 2,
		OffsetY: 0,
	}
}
