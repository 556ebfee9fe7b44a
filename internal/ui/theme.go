package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// appTheme задает светлую палитру с синим акцентом для всех платформ.
type appTheme struct {
	base fyne.Theme
}

func newAppTheme() fyne.Theme {
	return &appTheme{base: theme.LightTheme()}
}

func (t *appTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{R: 246, G: 247, B: 250, A: 255}
	case theme.ColorNameButton, theme.ColorNamePrimary:
		return color.NRGBA{R: 37, G: 99, B: 235, A: 255}
	case theme.ColorNameForeground:
		return color.NRGBA{R: 24, G: 26, B: 36, A: 255}
	case theme.ColorNameInputBackground:
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	case theme.ColorNameDisabled:
		return color.NRGBA{R: 180, G: 184, B: 193, A: 255}
	default:
		return t.base.Color(name, variant)
	}
}

func (t *appTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *appTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

func (t *appTheme) Size(name fyne.ThemeSizeName) float32 {
	return t.base.Size(name)
}
