// internal/watermark/pdf.go
package watermark

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/models"
)

// applyPDF stamps the mark onto every page. pdfcpu repeats a text
// watermark identically per page, which is exactly the multi-page
// semantics required here.
func (e *Engine) applyPDF(data []byte, text string, s models.WatermarkSettings) ([]byte, error) {
	wm, err := api.TextWatermark(pdfText(text, s.Position), pdfDescription(s), true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRenderFailed, err)
	}

	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(data), &buf, nil, wm, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRenderFailed, err)
	}

	return buf.Bytes(), nil
}

// pdfText expands the mark into a repeated block for tiled placement;
// other placements render a single instance.
func pdfText(text string, pos models.WatermarkPosition) string {
	if pos != models.WatermarkPositionTiled {
		return text
	}

	row := strings.TrimSpace(strings.Repeat(text+"      ", 3))
	rows := make([]string, 5)
	for i := range rows {
		rows[i] = row
	}
	return strings.Join(rows, "\n\n")
}

// pdfDescription translates the stored settings into a pdfcpu watermark
// description string.
func pdfDescription(s models.WatermarkSettings) string {
	desc := fmt.Sprintf("fontname:Helvetica, points:%d, opacity:%.2f, fillcolor:%s, scalefactor:1 abs",
		s.FontSize, s.Opacity, s.Color)

	switch s.Position {
	case models.WatermarkPositionCenter:
		desc += ", position:c, rotation:0"
	case models.WatermarkPositionFooter:
		desc += ", position:bc, rotation:0"
	case models.WatermarkPositionTiled:
		desc += ", position:c, rotation:45"
	default: // diagonal
		desc += ", position:c, rotation:45"
	}

	return desc
}
