package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	_ "image/jpeg"
	_ "image/png"
)

// MaxEdge caps the long edge of uploaded boards. Anything larger is
// downscaled before it is sent to the model.
const MaxEdge = 3072

var ErrUnsupportedFormat = errors.New("only JPEG and PNG images are supported")

// Prepare validates that the upload is a JPEG or PNG and downscales
// oversized boards, preserving the original format. It returns the
// bytes to send on plus their mime type.
func Prepare(data []byte) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrUnsupportedFormat
	}

	var mime string
	var encFormat imaging.Format
	switch format {
	case "jpeg":
		mime = "image/jpeg"
		encFormat = imaging.JPEG
	case "png":
		mime = "image/png"
		encFormat = imaging.PNG
	default:
		return nil, "", ErrUnsupportedFormat
	}

	if cfg.Width <= MaxEdge && cfg.Height <= MaxEdge {
		return data, mime, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fit(img, MaxEdge, MaxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, encFormat); err != nil {
		return nil, "", fmt.Errorf("re-encode image: %w", err)
	}

	return buf.Bytes(), mime, nil
}
