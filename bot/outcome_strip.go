package bot

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"coino/models"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
)

// outcomeRGB is the swatch color of each outcome
var outcomeRGB = map[models.Outcome][3]float64{
	models.OutcomeRed:    {0.93, 0.26, 0.27},
	models.OutcomeBlue:   {0.35, 0.40, 0.95},
	models.OutcomeGreen:  {0.34, 0.95, 0.53},
	models.OutcomeYellow: {1.00, 0.90, 0.36},
	models.OutcomePurple: {0.60, 0.35, 0.90},
	models.OutcomeOrange: {1.00, 0.60, 0.20},
}

// StripStyle sizes the outcome strip
type StripStyle struct {
	CellSize int
	Padding  int
	Height   int
}

// OutcomeStrip renders the outcomes of recent rounds as a row of colored discs,
// newest first, each labelled with its round number
type OutcomeStrip struct {
	style StripStyle
}

// NewOutcomeStrip creates a strip renderer with the default style
func NewOutcomeStrip() *OutcomeStrip {
	return &OutcomeStrip{
		style: StripStyle{
			CellSize: 56,
			Padding:  12,
			Height:   96,
		},
	}
}

// Render draws the rounds that have an outcome and returns PNG bytes
func (s *OutcomeStrip) Render(rounds []*models.Round) ([]byte, error) {
	drawn := make([]*models.Round, 0, len(rounds))
	for _, r := range rounds {
		if r != nil && r.WinningOutcome != nil {
			drawn = append(drawn, r)
		}
	}
	if len(drawn) == 0 {
		return nil, fmt.Errorf("no completed rounds to draw")
	}

	width := s.style.Padding*2 + len(drawn)*s.style.CellSize
	dc := gg.NewContext(width, s.style.Height)

	grad := gg.NewLinearGradient(0, 0, 0, float64(s.style.Height))
	grad.AddColorStop(0, color.RGBA{R: 41, G: 43, B: 56, A: 255})
	grad.AddColorStop(1, color.RGBA{R: 26, G: 26, B: 33, A: 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(width), float64(s.style.Height))
	dc.Fill()

	labelFace, err := loadFont(gomono.TTF, 11)
	if err != nil {
		return nil, fmt.Errorf("failed to load label font: %w", err)
	}
	initialFace, err := loadFont(gobold.TTF, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial font: %w", err)
	}

	radius := float64(s.style.CellSize)/2 - 6
	centerY := float64(s.style.Padding) + radius

	for i, round := range drawn {
		outcome := *round.WinningOutcome
		centerX := float64(s.style.Padding) + float64(i*s.style.CellSize) + float64(s.style.CellSize)/2

		c := outcomeRGB[outcome]
		dc.SetRGB(c[0], c[1], c[2])
		dc.DrawCircle(centerX, centerY, radius)
		dc.Fill()

		// Newest result gets a ring.
		if i == 0 {
			dc.SetRGB(1, 1, 1)
			dc.SetLineWidth(3)
			dc.DrawCircle(centerX, centerY, radius+3)
			dc.Stroke()
		}

		dc.SetFontFace(initialFace)
		dc.SetRGBA(0, 0, 0, 0.7)
		dc.DrawStringAnchored(strings.ToUpper(outcome.String()[:1]), centerX, centerY, 0.5, 0.35)

		dc.SetFontFace(labelFace)
		dc.SetRGB(0.85, 0.85, 0.9)
		dc.DrawStringAnchored(fmt.Sprintf("#%d", round.ID), centerX, centerY+radius+14, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode outcome strip: %w", err)
	}
	return buf.Bytes(), nil
}

// loadFont loads a TrueType font at the given size
func loadFont(fontData []byte, size float64) (font.Face, error) {
	f, err := truetype.Parse(fontData)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
