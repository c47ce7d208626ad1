package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm shows a warning box and asks the user to type "yes". Returns true
// only for that exact answer.
func (p *Printer) Confirm(in io.Reader, title string, warnings []string) bool {
	width := max(p.width, MinTerminalWidth)

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   ⚠  WARNING  ─  %s", title)), ""}
	bullet := lipgloss.NewStyle().Foreground(TextColor)
	for _, w := range warnings {
		lines = append(lines, bullet.Render("   • "+w))
	}
	lines = append(lines, "")

	p.Println(BoxStyle(WarningColor, width).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprint(p.out, WarningTitleStyle.Render(`Type "yes" to continue: `))

	input, err := bufio.NewReader(in).ReadString('\n')
	p.Newline()
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == "yes" {
		return true
	}

	p.Println(lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}
