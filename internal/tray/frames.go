package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
)

// DefaultFrames renders the built-in 16x16 flash frames: a filled dot and a
// fully transparent image.
func DefaultFrames() [2][]byte {
	return [2][]byte{dotPNG(), blankPNG()}
}

// LoadFrames reads the resting and blank frames from disk, falling back to
// the built-in image for any file that cannot be read.
func LoadFrames(iconPath, blankPath string) [2][]byte {
	frames := DefaultFrames()
	if data, err := os.ReadFile(iconPath); err == nil && len(data) > 0 {
		frames[0] = data
	}
	if data, err := os.ReadFile(blankPath); err == nil && len(data) > 0 {
		frames[1] = data
	}
	return frames
}

const frameSize = 16

func dotPNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, frameSize, frameSize))
	fill := color.NRGBA{R: 0x3f, G: 0x51, B: 0xb5, A: 0xff}
	c := float64(frameSize-1) / 2
	r2 := c * c
	for y := 0; y < frameSize; y++ {
		for x := 0; x < frameSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy <= r2 {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	return encodePNG(img)
}

func blankPNG() []byte {
	return encodePNG(image.NewNRGBA(image.Rect(0, 0, frameSize, frameSize)))
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	// Encoding an in-memory NRGBA image cannot fail.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
