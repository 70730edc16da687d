package watermark

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/models"
)

func testSettings(pos models.WatermarkPosition) models.WatermarkSettings {
	return models.WatermarkSettings{
		Enabled:          true,
		Text:             "Biblioteca Scriptoria - restricted material",
		FontSize:         14,
		Opacity:          0.4,
		Position:         pos,
		Color:            "#803030",
		IncludeUserID:    true,
		IncludeTimestamp: true,
	}
}

func testContext(pos models.WatermarkPosition, token string) Context {
	return Context{
		DisplayName: "Ada Reader",
		Email:       "ada@example.org",
		Institution: "University of Bologna",
		WatermarkID: token,
		Timestamp:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Settings:    testSettings(pos),
	}
}

func testImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: 230, G: 225, B: 210, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComposeText(t *testing.T) {
	s := testSettings(models.WatermarkPositionDiagonal)
	ctx := testContext(models.WatermarkPositionDiagonal, "wm_token1")

	got := ComposeText(s, ctx)
	assert.Equal(t, "Biblioteca Scriptoria - restricted material | ada@example.org | 2026-03-14T09:30:00Z | wm_token1", got)
}

func TestComposeTextWithoutIdentity(t *testing.T) {
	s := testSettings(models.WatermarkPositionDiagonal)
	s.IncludeUserID = false
	s.IncludeTimestamp = false
	ctx := testContext(models.WatermarkPositionDiagonal, "wm_token1")

	assert.Equal(t, "Biblioteca Scriptoria - restricted material | wm_token1", ComposeText(s, ctx))
}

func TestComposeTextEmptyEmail(t *testing.T) {
	s := testSettings(models.WatermarkPositionDiagonal)
	ctx := testContext(models.WatermarkPositionDiagonal, "")
	ctx.Email = ""

	assert.Equal(t, "Biblioteca Scriptoria - restricted material |  | 2026-03-14T09:30:00Z", ComposeText(s, ctx))
}

func TestApplyImageProducesFreshMarkedCopy(t *testing.T) {
	engine := NewEngine()
	original := testImagePNG(t)
	input := make([]byte, len(original))
	copy(input, original)

	out, err := engine.Apply(models.FileTypeImage, input, testContext(models.WatermarkPositionDiagonal, "wm_token1"))
	require.NoError(t, err)

	assert.NotEqual(t, original, out, "output must carry the mark")
	assert.Equal(t, original, input, "input buffer must not be mutated")

	_, err = png.Decode(bytes.NewReader(out))
	assert.NoError(t, err, "output must remain a valid PNG")
}

func TestApplyImageDistinctTokensDistinctOutput(t *testing.T) {
	engine := NewEngine()
	img := testImagePNG(t)

	out1, err := engine.Apply(models.FileTypeImage, img, testContext(models.WatermarkPositionCenter, "wm_token1"))
	require.NoError(t, err)
	out2, err := engine.Apply(models.FileTypeImage, img, testContext(models.WatermarkPositionCenter, "wm_token2"))
	require.NoError(t, err)

	assert.NotEqual(t, out1, out2)
}

func TestApplyImageDistinctTimestampsDistinctOutput(t *testing.T) {
	engine := NewEngine()
	img := testImagePNG(t)

	ctx1 := testContext(models.WatermarkPositionCenter, "wm_token1")
	ctx2 := testContext(models.WatermarkPositionCenter, "wm_token1")
	ctx2.Timestamp = ctx2.Timestamp.Add(time.Hour)

	out1, err := engine.Apply(models.FileTypeImage, img, ctx1)
	require.NoError(t, err)
	out2, err := engine.Apply(models.FileTypeImage, img, ctx2)
	require.NoError(t, err)

	assert.NotEqual(t, out1, out2)
}

func TestApplyImageAllPositions(t *testing.T) {
	engine := NewEngine()
	img := testImagePNG(t)

	positions := []models.WatermarkPosition{
		models.WatermarkPositionDiagonal,
		models.WatermarkPositionCenter,
		models.WatermarkPositionFooter,
		models.WatermarkPositionTiled,
	}

	for _, pos := range positions {
		out, err := engine.Apply(models.FileTypeImage, img, testContext(pos, "wm_token1"))
		require.NoError(t, err, "position %s", pos)
		assert.NotEqual(t, img, out, "position %s", pos)
	}
}

func TestApplyUnsupportedFileType(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Apply(models.FileTypeOther, []byte("plain text"), testContext(models.WatermarkPositionDiagonal, "wm_token1"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFileType)
}

func TestApplyCorruptImage(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Apply(models.FileTypeImage, []byte("not an image"), testContext(models.WatermarkPositionDiagonal, "wm_token1"))
	assert.ErrorIs(t, err, apperrors.ErrRenderFailed)
}

func TestApplyCorruptPDF(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Apply(models.FileTypePDF, []byte("%PDF-1.7 garbage"), testContext(models.WatermarkPositionDiagonal, "wm_token1"))
	assert.ErrorIs(t, err, apperrors.ErrRenderFailed)
}

func TestParseHexColor(t *testing.T) {
	r, g, b := parseHexColor("#ff0080")
	assert.InDelta(t, 1.0, r, 0.01)
	assert.InDelta(t, 0.0, g, 0.01)
	assert.InDelta(t, 0.5, b, 0.01)

	// malformed values fall back to gray
	r, g, b = parseHexColor("red")
	assert.Equal(t, 0.5, r)
	assert.Equal(t, 0.5, g)
	assert.Equal(t, 0.5, b)
}
