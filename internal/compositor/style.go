package compositor

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PulseStyle is the visual vocabulary of one annotation variant.
type PulseStyle struct {
	Accent color.NRGBA
	Border color.NRGBA
	Label  string
}

// Style holds every color and label the compositor draws with.
type Style struct {
	Background      color.NRGBA
	Accent          color.NRGBA
	TitleColor      color.NRGBA
	TitleShadow     color.NRGBA
	Placeholder     color.NRGBA
	PlaceholderText color.NRGBA
	Pulses          map[string]PulseStyle
}

var (
	accentGreen = color.NRGBA{R: 0x01, G: 0x63, B: 0x62, A: 0xff}
	white       = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// DefaultStyle returns the built-in look: white background, #016362 accent,
// white-bordered "highlight" pulses with a TAP label and red-bordered
// "touch" pulses.
func DefaultStyle() Style {
	return Style{
		Background:      white,
		Accent:          accentGreen,
		TitleColor:      accentGreen,
		TitleShadow:     color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x80},
		Placeholder:     color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff},
		PlaceholderText: color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff},
		Pulses: map[string]PulseStyle{
			"highlight": {Accent: accentGreen, Border: white, Label: "TAP"},
			"touch":     {Accent: accentGreen, Border: color.NRGBA{R: 0xff, A: 0xff}},
		},
	}
}

// Pulse returns the preset for name, falling back to "highlight".
func (s Style) Pulse(name string) PulseStyle {
	if p, ok := s.Pulses[name]; ok {
		return p
	}
	if p, ok := s.Pulses["highlight"]; ok {
		return p
	}
	return PulseStyle{Accent: s.Accent, Border: white}
}

type styleFile struct {
	Background      string                    `yaml:"background"`
	Accent          string                    `yaml:"accent"`
	TitleColor      string                    `yaml:"title_color"`
	TitleShadow     string                    `yaml:"title_shadow"`
	Placeholder     string                    `yaml:"placeholder"`
	PlaceholderText string                    `yaml:"placeholder_text"`
	Pulses          map[string]pulseStyleFile `yaml:"pulses"`
}

type pulseStyleFile struct {
	Accent string  `yaml:"accent"`
	Border string  `yaml:"border"`
	Label  *string `yaml:"label"`
}

// ParseStyle overlays a YAML style document on DefaultStyle. Keys that are
// absent keep their defaults.
func ParseStyle(data []byte) (Style, error) {
	st := DefaultStyle()

	var f styleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return st, fmt.Errorf("parse style: %w", err)
	}

	fields := []struct {
		raw string
		dst *color.NRGBA
	}{
		{f.Background, &st.Background},
		{f.Accent, &st.Accent},
		{f.TitleColor, &st.TitleColor},
		{f.TitleShadow, &st.TitleShadow},
		{f.Placeholder, &st.Placeholder},
		{f.PlaceholderText, &st.PlaceholderText},
	}
	for _, fld := range fields {
		if fld.raw == "" {
			continue
		}
		c, err := ParseHexColor(fld.raw)
		if err != nil {
			return st, err
		}
		*fld.dst = c
	}

	for name, pf := range f.Pulses {
		p, ok := st.Pulses[name]
		if !ok {
			p = PulseStyle{Accent: st.Accent, Border: white}
		}
		if pf.Accent != "" {
			c, err := ParseHexColor(pf.Accent)
			if err != nil {
				return st, err
			}
			p.Accent = c
		}
		if pf.Border != "" {
			c, err := ParseHexColor(pf.Border)
			if err != nil {
				return st, err
			}
			p.Border = c
		}
		if pf.Label != nil {
			p.Label = *pf.Label
		}
		st.Pulses[name] = p
	}

	return st, nil
}

// LoadStyleFile reads a YAML style file. An empty path yields DefaultStyle.
func LoadStyleFile(path string) (Style, error) {
	if path == "" {
		return DefaultStyle(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultStyle(), fmt.Errorf("read style file: %w", err)
	}
	return ParseStyle(data)
}

// ParseHexColor accepts #rgb, #rrggbb and #rrggbbaa.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
