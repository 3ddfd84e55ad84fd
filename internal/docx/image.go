package docx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// emuPerInch is the OOXML English Metric Unit scale.
const emuPerInch = 914400

// assumedDPI maps pixel dimensions to display inches when the source image
// carries no density information.
const assumedDPI = 96

// normalizedImage is an image ready for insertion: bytes in a container the
// .docx format accepts, plus its display extent in EMU.
type normalizedImage struct {
	data      []byte
	extension string
	widthEMU  int64
	heightEMU int64
}

// normalizeImage decodes the asset, re-encodes formats the output container
// does not support into PNG, and computes a display extent bounded by
// maxWidthInches while preserving the aspect ratio.
func normalizeImage(name string, content []byte, maxWidthInches float64) (*normalizedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, &ImageDecodeError{Asset: name, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &ImageDecodeError{Asset: name, Err: fmt.Errorf("degenerate dimensions %dx%d", cfg.Width, cfg.Height)}
	}

	data := content
	extension := ""
	switch format {
	case "png":
		extension = "png"
	case "jpeg":
		extension = "jpeg"
	default:
		// GIF, BMP, TIFF and friends get re-encoded so the container only
		// ever carries PNG and JPEG parts.
		decoded, err := imaging.Decode(bytes.NewReader(content))
		if err != nil {
			return nil, &ImageDecodeError{Asset: name, Err: err}
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, decoded, imaging.PNG); err != nil {
			return nil, &ImageDecodeError{Asset: name, Err: fmt.Errorf("re-encode as png: %w", err)}
		}
		data = buf.Bytes()
		extension = "png"
	}

	widthInches := float64(cfg.Width) / assumedDPI
	if widthInches > maxWidthInches {
		widthInches = maxWidthInches
	}
	heightInches := widthInches * float64(cfg.Height) / float64(cfg.Width)

	return &normalizedImage{
		data:      data,
		extension: extension,
		widthEMU:  int64(widthInches * emuPerInch),
		heightEMU: int64(heightInches * emuPerInch),
	}, nil
}
