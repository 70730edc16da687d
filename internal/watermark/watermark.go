// internal/watermark/watermark.go
package watermark

import (
	"fmt"
	"strconv"
	"time"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/models"
)

// Context carries the identity of one delivery. The watermark id is either
// the grant's stored token or an ad hoc token minted for a single owner
// download; either way it makes the rendered mark unique per access event.
type Context struct {
	DisplayName string
	Email       string
	Institution string
	WatermarkID string
	Timestamp   time.Time
	Settings    models.WatermarkSettings
}

// ComposeText assembles the string that gets rendered. Pure function,
// independent of the rendering backend.
func ComposeText(s models.WatermarkSettings, ctx Context) string {
	text := s.Text
	if s.IncludeUserID {
		text += " | " + ctx.Email
	}
	if s.IncludeTimestamp {
		text += " | " + ctx.Timestamp.UTC().Format(time.RFC3339)
	}
	if ctx.WatermarkID != "" {
		text += " | " + ctx.WatermarkID
	}
	return text
}

// Engine embeds a forensic text mark into PDF and raster-image byte
// streams. The input buffer is never mutated; every call produces a fresh
// copy.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Apply returns a watermarked copy of data. PDF marks are composited onto
// every page; images onto the single canvas. Anything other than pdf or
// image is refused with ErrUnsupportedFileType so the caller can decide
// (and log) whether to serve it unmarked.
func (e *Engine) Apply(fileType models.FileType, data []byte, ctx Context) ([]byte, error) {
	text := ComposeText(ctx.Settings, ctx)

	switch fileType {
	case models.FileTypePDF:
		return e.applyPDF(data, text, ctx.Settings)
	case models.FileTypeImage:
		return e.applyImage(data, text, ctx.Settings)
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFileType, fileType)
	}
}

// parseHexColor converts "#rrggbb" to normalized RGB components. Malformed
// values fall back to mid gray rather than failing a delivery.
func parseHexColor(hex string) (r, g, b float64) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0.5, 0.5, 0.5
	}

	rv, err1 := strconv.ParseUint(hex[1:3], 16, 8)
	gv, err2 := strconv.ParseUint(hex[3:5], 16, 8)
	bv, err3 := strconv.ParseUint(hex[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0.5, 0.5, 0.5
	}

	return float64(rv) / 255, float64(gv) / 255, float64(bv) / 255
}
