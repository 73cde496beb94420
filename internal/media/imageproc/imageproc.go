// Package imageproc normalizes uploaded photos: decode, apply EXIF
// orientation, flatten transparency and re-encode as JPEG.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	JPEGQuality = 85
	ProfileSize = 128
	ContentType = "image/jpeg"
)

var ErrDecode = errors.New("image could not be decoded")

type Processed struct {
	Data   []byte
	Width  int
	Height int
}

// DevicePhoto keeps the original resolution after rotation.
func DevicePhoto(data []byte) (Processed, error) {
	img, err := decode(data)
	if err != nil {
		return Processed{}, err
	}
	return encode(img)
}

// ProfilePicture center crops to a ProfileSize square.
func ProfilePicture(data []byte) (Processed, error) {
	img, err := decode(data)
	if err != nil {
		return Processed{}, err
	}
	return encode(imaging.Fill(img, ProfileSize, ProfileSize, imaging.Center, imaging.Lanczos))
}

func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func encode(img image.Image) (Processed, error) {
	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	canvas = imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return Processed{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Processed{
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
