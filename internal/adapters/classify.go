package adapters

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

var (
	codeIndicators = []string{
		"def ", "class ", "function", "import ", "const ", "var ", "func ",
		"return", "{", "}", "()", "=>", "public class", "private",
	}
	slideIndicators = []string{
		"agenda", "outline", "introduction", "conclusion",
		"overview", "objectives", "thank you",
	}
)

const (
	diagramMaxText  = 100
	diagramMinWidth = 800
)

// Classify tags captured screen text. Sparse text on a wide image reads as a diagram.
func Classify(text string, width int) models.Classification {
	lower := strings.ToLower(text)
	for _, ind := range codeIndicators {
		if strings.Contains(lower, ind) {
			return models.ClassCode
		}
	}
	for _, ind := range slideIndicators {
		if strings.Contains(lower, ind) {
			return models.ClassSlide
		}
	}
	if len(strings.TrimSpace(text)) < diagramMaxText && width > diagramMinWidth {
		return models.ClassDiagram
	}
	return models.ClassUnknown
}

// imageWidth returns the pixel width of an encoded image, or 0 if it cannot be read.
func imageWidth(data []byte) int {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	return cfg.Width
}
