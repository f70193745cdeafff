package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	cardURLStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	cardErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	cardLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6"))
)

// RenderCard formats a preview result as a bordered terminal card.
func RenderCard(result Result, width int) string {
	if width <= 0 {
		width = 72
	}
	inner := width - 4 // border and padding

	var b strings.Builder
	b.WriteString(cardTitleStyle.Render(result.Title))
	b.WriteString("\n")
	b.WriteString(cardURLStyle.Render(result.URL))

	if result.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(wrapText(result.Description, inner))
	}

	if result.Image != "" {
		b.WriteString("\n\n")
		b.WriteString(cardLabelStyle.Render("Image: "))
		b.WriteString(result.Image)
	}
	if result.Favicon != "" {
		b.WriteString("\n")
		b.WriteString(cardLabelStyle.Render("Favicon: "))
		b.WriteString(result.Favicon)
	}

	if result.Fallback {
		b.WriteString("\n\n")
		b.WriteString(cardErrorStyle.Render("degraded: " + result.Error))
		if result.Message != "" {
			b.WriteString(": " + result.Message)
		}
	}

	return cardStyle.Width(width).Render(b.String())
}

// FormatCompactLine formats one result as a single list row.
func FormatCompactLine(index int, result Result) string {
	title := result.Title
	const maxTitleWidth = 60
	if len(title) > maxTitleWidth {
		title = title[:maxTitleWidth-3] + "..."
	}

	marker := " "
	if result.Fallback {
		marker = "!"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		cardURLStyle.Render(fmt.Sprintf("%2d", index+1)),
		" ",
		cardErrorStyle.Render(marker),
		" ",
		title,
		"  ",
		cardURLStyle.Render(result.URL),
	)
}

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	var line strings.Builder
	lineLen := 0

	words := strings.Fields(text)
	for i, word := range words {
		wordLen := len(word)

		// If adding this word would exceed width, start a new line
		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString(line.String())
			result.WriteString("\n")
			line.Reset()
			lineLen = 0
		}

		// Add space before word if not at start of line
		if lineLen > 0 {
			line.WriteString(" ")
			lineLen++
		}

		line.WriteString(word)
		lineLen += wordLen

		// Write the last line
		if i == len(words)-1 {
			result.WriteString(line.String())
		}
	}

	return result.String()
}
