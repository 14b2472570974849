package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

type classificationJSON struct {
	Magnitude float64              `json:"magnitude"`
	Class     domain.SeverityClass `json:"class"`
	Threat    string               `json:"threat"`
	Color     string               `json:"color"`
	Radius    float64              `json:"radius"`
	Pulse     bool                 `json:"pulse"`
}

// Execute implements the go-flags Commander interface for ClassifyCommand.
func (c *ClassifyCommand) Execute(_ []string) error {
	out := make([]classificationJSON, 0, len(c.Args.Magnitudes))
	for _, arg := range c.Args.Magnitudes {
		m, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			return fmt.Errorf("invalid magnitude %q", arg)
		}
		class := domain.Classify(m)
		out = append(out, classificationJSON{
			Magnitude: m,
			Class:     class,
			Threat:    domain.ThreatLabel(class),
			Color:     domain.Color(class),
			Radius:    domain.MarkerRadius(m),
			Pulse:     domain.Pulses(m),
		})
	}

	if c.globals.jsonOutput() {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, r := range out {
		line := fmt.Sprintf("M%-5.1f %s %s", r.Magnitude, classStyle(r.Class).Render(r.Class.String()), r.Color)
		if r.Pulse {
			line += "  pulse"
		}
		if _, err := fmt.Fprintln(c.out, line); err != nil {
			return err
		}
	}
	return nil
}
