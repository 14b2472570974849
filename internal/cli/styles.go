package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

var (
	colorMuted  = lipgloss.Color("241")
	colorAccent = lipgloss.Color("212")
)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorAccent).
	MarginBottom(1)

var labelStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Width(18)

var valueStyle = lipgloss.NewStyle().Bold(true)

// classStyle paints a severity class in its map color.
func classStyle(c domain.SeverityClass) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(domain.Color(c))).
		Width(10)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}
