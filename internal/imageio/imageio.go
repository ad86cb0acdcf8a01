// Package imageio reads and writes frames and masks on disk.
package imageio

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	// Register decoders with image.Decode.
	_ "image/gif"

	_ "golang.org/x/image/webp"

	"github.com/cwbudde/holefill/internal/frame"
)

// MaskThreshold is the luminance at or above which a mask image pixel marks
// the region to fill.
const MaskThreshold = 128

// ErrUnsupportedFormat is returned when saving to an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// LoadImage decodes any registered image format from path.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return img, nil
}

// LoadFrame loads path as a frame with the given channel count (1 or 3).
func LoadFrame(path string, channels int) (*frame.Frame, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	fr, err := frame.FromImage(img, channels)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert %s", path)
	}
	return fr, nil
}

// LoadMask loads path as a mask; bright pixels mark the hole.
func LoadMask(path string) (*frame.Mask, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	return frame.MaskFromImage(img, MaskThreshold), nil
}

// SaveImage encodes img by the extension of path (png, jpg/jpeg, bmp, tif/tiff).
func SaveImage(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create image file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(out, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = bmp.Encode(out, img)
	case ".tif", ".tiff":
		err = tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = errors.Wrapf(ErrUnsupportedFormat, "extension %q", filepath.Ext(path))
	}
	if cerr := out.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "failed to close image file")
	}
	if err != nil {
		os.Remove(path)
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// SaveFrame writes f to path.
func SaveFrame(path string, f *frame.Frame) error {
	return SaveImage(path, f.ToImage())
}
