package credits

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// rateCard is the YAML shape of a rate file. Values are kept as strings so they parse
// exactly into decimals; missing entries keep the base rate.
type rateCard struct {
	TextPerPage  string `yaml:"text_per_page"`
	ImagePerPage string `yaml:"image_per_page"`
	PerQuestion  string `yaml:"per_question"`
}

// LoadRates overlays the rate file at path on base.
func LoadRates(path string, base Rates) (Rates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rates{}, fmt.Errorf("reading rate card: %w", err)
	}

	var card rateCard
	if err := yaml.Unmarshal(data, &card); err != nil {
		return Rates{}, fmt.Errorf("parsing rate card %s: %w", path, err)
	}

	rates := base
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"text_per_page", card.TextPerPage, &rates.TextPerPage},
		{"image_per_page", card.ImagePerPage, &rates.ImagePerPage},
		{"per_question", card.PerQuestion, &rates.PerQuestion},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return Rates{}, fmt.Errorf("rate card %s: %s: %w", path, f.name, err)
		}
		if d.IsNegative() {
			return Rates{}, fmt.Errorf("rate card %s: %s must not be negative", path, f.name)
		}
		*f.dst = d
	}

	slog.Info("rate card loaded",
		"path", path,
		"text_per_page", rates.TextPerPage.String(),
		"image_per_page", rates.ImagePerPage.String(),
		"per_question", rates.PerQuestion.String(),
	)
	return rates, nil
}
