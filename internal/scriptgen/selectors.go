package scriptgen

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pauljones0/harvester/internal/validator"
)

type SelectorConfig struct {
	Timeline TimelineSelectors `json:"timeline" validate:"required"`
	Pacing   Pacing            `json:"pacing" validate:"required"`
}

// TimelineSelectors locate one post and its parts in the rendered timeline.
type TimelineSelectors struct {
	Article    string `json:"article" validate:"required"`     // e.g., article[data-testid="tweet"]
	StatusLink string `json:"status_link" validate:"required"` // anchor whose href carries /status/<id>
	Text       string `json:"text" validate:"required"`
	Time       string `json:"time" validate:"required"`
	UserName   string `json:"user_name" validate:"required"`
	Avatar     string `json:"avatar" validate:"required"`
	Photo      string `json:"photo" validate:"required"`
	Video      string `json:"video" validate:"required"`
}

type Pacing struct {
	ScrollDelayMillis int `json:"scroll_delay_ms" validate:"gte=100,lte=60000"`
	MaxIdleScrolls    int `json:"max_idle_scrolls" validate:"gte=1,lte=100"`
}

var selectorValidator = validator.New()

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses and validates selector configuration from raw JSON bytes.
// This supports loading from embedded data via go:embed.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if err := selectorValidator.ValidateStruct(config); err != nil {
		return SelectorConfig{}, fmt.Errorf("invalid selector config: %w", err)
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
// It mirrors the embedded selectors.json, which should be preferred.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Timeline: TimelineSelectors{
			Article:    `article[data-testid="tweet"]`,
			StatusLink: `a[href*="/status/"]`,
			Text:       `div[data-testid="tweetText"]`,
			Time:       "time",
			UserName:   `div[data-testid="User-Name"]`,
			Avatar:     `div[data-testid="Tweet-User-Avatar"] img`,
			Photo:      `div[data-testid="tweetPhoto"] img`,
			Video:      `div[data-testid="videoPlayer"] video`,
		},
		Pacing: Pacing{
			ScrollDelayMillis: 1500,
			MaxIdleScrolls:    8,
		},
	}
}
