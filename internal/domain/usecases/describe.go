package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

// DefaultPrompt is sent with every image when no prompt is configured.
const DefaultPrompt = "What is in this image?"

// errEmptyDescription is returned when the model answers with nothing.
var errEmptyDescription = errors.New("vision model returned an empty description")

// DescriptionGenerator asks the vision model what a screenshot shows.
type DescriptionGenerator struct {
	vision ports.VisionService
	prompt string
}

// NewDescriptionGenerator creates a generator using prompt for every image.
func NewDescriptionGenerator(vision ports.VisionService, prompt string) *DescriptionGenerator {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	return &DescriptionGenerator{vision: vision, prompt: prompt}
}

// Describe makes a single vision call for the screenshot. No retry.
func (g *DescriptionGenerator) Describe(ctx context.Context, shot *entities.Screenshot) (string, error) {
	text, err := g.vision.Describe(ctx, g.prompt, shot)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyDescription
	}
	return text, nil
}
