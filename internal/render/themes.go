package render

import "github.com/charmbracelet/lipgloss"

// Theme is the colour scheme shared by the terminal and SVG renderers.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	// Slow and Fast are the ends of the speed gradient.
	Slow    lipgloss.Color
	Fast    lipgloss.Color
	Scatter lipgloss.Color
	Paper   lipgloss.Color
}

var (
	ThemeCyberpunk = Theme{
		Name:    "cyberpunk",
		Primary: lipgloss.Color("#00ffff"),
		Accent:  lipgloss.Color("#ff00ff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#666688"),
		Warning: lipgloss.Color("#ff8800"),
		Error:   lipgloss.Color("#ff0000"),
		Slow:    lipgloss.Color("#3355ff"),
		Fast:    lipgloss.Color("#ff3366"),
		Scatter: lipgloss.Color("#ffff00"),
		Paper:   lipgloss.Color("#0a0a0a"),
	}

	ThemeRetro = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Accent:  lipgloss.Color("#88ff88"),
		Text:    lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#005500"),
		Warning: lipgloss.Color("#ffff00"),
		Error:   lipgloss.Color("#ff0000"),
		Slow:    lipgloss.Color("#006600"),
		Fast:    lipgloss.Color("#aaffaa"),
		Scatter: lipgloss.Color("#ffff00"),
		Paper:   lipgloss.Color("#001100"),
	}

	ThemeOcean = Theme{
		Name:    "ocean",
		Primary: lipgloss.Color("#00a8cc"),
		Accent:  lipgloss.Color("#ffd700"),
		Text:    lipgloss.Color("#e0f0ff"),
		Muted:   lipgloss.Color("#4488aa"),
		Warning: lipgloss.Color("#ffcc00"),
		Error:   lipgloss.Color("#ff4444"),
		Slow:    lipgloss.Color("#0044aa"),
		Fast:    lipgloss.Color("#00ffcc"),
		Scatter: lipgloss.Color("#ffd700"),
		Paper:   lipgloss.Color("#001a33"),
	}

	// ThemePaper is meant for exports printed on white.
	ThemePaper = Theme{
		Name:    "paper",
		Primary: lipgloss.Color("#222222"),
		Accent:  lipgloss.Color("#0055cc"),
		Text:    lipgloss.Color("#111111"),
		Muted:   lipgloss.Color("#888888"),
		Warning: lipgloss.Color("#cc7700"),
		Error:   lipgloss.Color("#cc0000"),
		Slow:    lipgloss.Color("#0033cc"),
		Fast:    lipgloss.Color("#cc0033"),
		Scatter: lipgloss.Color("#ff8800"),
		Paper:   lipgloss.Color("#ffffff"),
	}

	Themes = []Theme{ThemeCyberpunk, ThemeRetro, ThemeOcean, ThemePaper}
)

// GetTheme returns the named theme, falling back to the first one.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

// NextTheme returns the theme after name, wrapping around.
func NextTheme(name string) Theme {
	for i, t := range Themes {
		if t.Name == name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// SpeedColor interpolates between the Slow and Fast colours. frac is clamped
// to [0, 1].
func (t Theme) SpeedColor(frac float64) lipgloss.Color {
	frac = max(0, min(1, frac))
	sr, sg, sb := parseHex(string(t.Slow))
	er, eg, eb := parseHex(string(t.Fast))
	lerp := func(a, b int) int { return a + int(frac*float64(b-a)) }
	return lipgloss.Color(hexColor(lerp(sr, er), lerp(sg, eg), lerp(sb, eb)))
}

func parseHex(hex string) (r, g, b int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 255, 255, 255
	}
	return hexByteValue(hex[1:3]), hexByteValue(hex[3:5]), hexByteValue(hex[5:7])
}

func hexByteValue(s string) int {
	v := 0
	for _, c := range s {
		v *= 16
		switch {
		case c >= '0' && c <= '9':
			v += int(c - '0')
		case c >= 'a' && c <= 'f':
			v += int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v += int(c-'A') + 10
		}
	}
	return v
}

func hexColor(r, g, b int) string {
	const digits = "0123456789abcdef"
	out := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []int{r, g, b} {
		v = max(0, min(255, v))
		out[1+2*i] = digits[v/16]
		out[2+2*i] = digits[v%16]
	}
	return string(out)
}
