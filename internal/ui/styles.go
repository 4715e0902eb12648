package ui

import (
	"image/color"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
)

// Palette. Every color used by the CLI comes from here.
var (
	ColorAccent  = lipgloss.Color("#8B5CF6") // violet
	ColorInfo    = lipgloss.Color("#38BDF8") // sky
	ColorGood    = lipgloss.Color("#22C55E")
	ColorCaution = lipgloss.Color("#EAB308")
	ColorBad     = lipgloss.Color("#F43F5E")
	ColorFaint   = lipgloss.Color("#64748B")
	ColorMark    = lipgloss.Color("#EC4899") // pink

	ColorText    = lipgloss.Color("#F8FAFC")
	ColorTextDim = lipgloss.Color("#94A3B8")
)

// labelColors tints predicted emotions; unknown names fall back to ColorMark.
var labelColors = map[string]color.Color{
	"sadness":  lipgloss.Color("#60A5FA"),
	"joy":      lipgloss.Color("#FACC15"),
	"love":     lipgloss.Color("#F472B6"),
	"anger":    lipgloss.Color("#EF4444"),
	"fear":     lipgloss.Color("#A78BFA"),
	"surprise": lipgloss.Color("#34D399"),
}

// styleWrapper renders plain text when color is disabled.
type styleWrapper struct {
	style lipgloss.Style
}

func (s styleWrapper) Render(str string) string {
	if noColor {
		return str
	}
	return s.style.Render(str)
}

func fg(c color.Color) styleWrapper { return styleWrapper{lipgloss.NewStyle().Foreground(c)} }

var (
	Dim       = fg(ColorTextDim)
	Muted     = fg(ColorFaint)
	Success   = fg(ColorGood)
	Warning   = fg(ColorCaution)
	Error     = fg(ColorBad)
	Secondary = fg(ColorInfo)
	Highlight = styleWrapper{lipgloss.NewStyle().Foreground(ColorMark).Bold(true)}

	SectionHeader = styleWrapper{lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)}

	StepPending  = Muted
	StepRunning  = Secondary
	StepComplete = Success
	StepFailed   = Error
	StepSkipped  = Warning
)

// Box frames tables and summaries.
var Box = styleWrapper{lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorFaint).
	Padding(0, 1)}

// LabelStyle returns the color of an emotion label.
func LabelStyle(name string) styleWrapper {
	c, ok := labelColors[name]
	if !ok {
		c = ColorMark
	}
	return styleWrapper{lipgloss.NewStyle().Foreground(c).Bold(true)}
}

func GetCheckMark() string { return Success.Render("✓") }
func GetCrossMark() string { return Error.Render("✗") }
func GetWarnMark() string  { return Warning.Render("⚠") }
func GetBullet() string    { return Muted.Render("•") }

// FormatKeyValue renders "key: value" with a dimmed key.
func FormatKeyValue(key, value string) string {
	return Dim.Render(key+": ") + value
}

// FormatStatus prefixes message with the mark for status
// (success, error, warning, info).
func FormatStatus(status, message string) string {
	var icon string
	switch status {
	case "success":
		icon = GetCheckMark()
	case "error":
		icon = GetCrossMark()
	case "warning":
		icon = GetWarnMark()
	case "info":
		icon = Secondary.Render("ℹ")
	default:
		icon = GetBullet()
	}
	return icon + " " + message
}

// FangColorScheme maps the palette onto fang's help and error output.
func FangColorScheme(c lipgloss.LightDarkFunc) fang.ColorScheme {
	return fang.ColorScheme{
		Base:           ColorText,
		Title:          ColorAccent,
		Description:    ColorTextDim,
		Codeblock:      c(lipgloss.Color("#E2E8F0"), lipgloss.Color("#1E293B")),
		Program:        ColorInfo,
		DimmedArgument: ColorFaint,
		Comment:        ColorFaint,
		Flag:           ColorGood,
		FlagDefault:    ColorTextDim,
		Command:        ColorMark,
		QuotedString:   ColorInfo,
		Argument:       ColorText,
		Help:           ColorTextDim,
		Dash:           ColorFaint,
		ErrorHeader:    [2]color.Color{ColorText, ColorBad},
		ErrorDetails:   ColorBad,
	}
}

const BannerASCII = `
                     _
  ___ _ __ ___   ___| |_ _   _ _ __   ___
 / _ \ '_ ' _ \ / _ \ __| | | | '_ \ / _ \
|  __/ | | | | | (_) | |_| |_| | | | |  __/
 \___|_| |_| |_|\___/ \__|\__,_|_| |_|\___|
`

// RenderBanner renders the banner in the accent color.
func RenderBanner(banner string) string {
	return SectionHeader.Render(banner)
}
