// internal/watermark/image.go
package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/models"
)

var (
	fontOnce   sync.Once
	parsedFont *sfnt.Font
	fontErr    error
)

func watermarkFace(size int) (font.Face, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}

	return opentype.NewFace(parsedFont, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// applyImage composites the mark onto the raster canvas and re-encodes to
// the source format.
func (e *Engine) applyImage(data []byte, text string, s models.WatermarkSettings) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRenderFailed, err)
	}

	face, err := watermarkFace(s.FontSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRenderFailed, err)
	}

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(face)

	r, g, b := parseHexColor(s.Color)
	dc.SetRGBA(r, g, b, s.Opacity)

	w := float64(dc.Width())
	h := float64(dc.Height())

	switch s.Position {
	case models.WatermarkPositionCenter:
		dc.DrawStringAnchored(text, w/2, h/2, 0.5, 0.5)
	case models.WatermarkPositionFooter:
		dc.DrawStringAnchored(text, w/2, h-float64(s.FontSize), 0.5, 0.5)
	case models.WatermarkPositionTiled:
		tw, th := dc.MeasureString(text)
		stepX := tw + 48
		stepY := th * 6
		for y := th; y < h+stepY; y += stepY {
			for x := 0.0; x < w+stepX; x += stepX {
				dc.DrawStringAnchored(text, x, y, 0.5, 0.5)
			}
		}
	default: // diagonal
		dc.RotateAbout(gg.Radians(-45), w/2, h/2)
		dc.DrawStringAnchored(text, w/2, h/2, 0.5, 0.5)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dc.Image())
	case "gif":
		err = gif.Encode(&buf, dc.Image(), nil)
	default:
		err = jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 92})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRenderFailed, err)
	}

	return buf.Bytes(), nil
}
