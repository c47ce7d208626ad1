package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/multicontroller/internal/version"
)

// AppName is shown in the dashboard title
const AppName = "MULTICONTROLLER WATCH"

// AppVersion returns the application version from the centralized version package
func AppVersion() string {
	return version.Version
}

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5555") // Red
	TextColor      = lipgloss.Color("#FFFFFF") // White
	SubtleColor    = lipgloss.Color("#626262") // Gray
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	// RowStyle is an unselected entity row
	RowStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			PaddingLeft(2)

	// SelectedRowStyle highlights the row under the cursor
	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(SecondaryColor).
				Bold(true).
				PaddingLeft(0)

	UnavailableStyle = lipgloss.NewStyle().
				Foreground(SubtleColor).
				Strikethrough(true)

	StatusOKStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)
)
