// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Styles for human-facing output on stderr and in validate, render and
// config. The engine result on stdout is never styled.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#7C3AED"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#6B7280"}
	colorOK     = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#10B981"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"}
	colorKey    = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#3B82F6"}

	// TitleStyle heads a report such as `config show`.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	// SubtitleStyle marks placeholders and secondary text.
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	// SuccessStyle marks values and confirmations.
	SuccessStyle = lipgloss.NewStyle().Foreground(colorOK)
	// ErrorStyle prefixes rendered errors.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorFail)
	// KeyStyle marks setting names and plan row labels.
	KeyStyle = lipgloss.NewStyle().Foreground(colorKey)
)

func checkMark() string { return SuccessStyle.Render("✓") }
