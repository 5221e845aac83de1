package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	units "github.com/docker/go-units"

	"github.com/ChamsBouzaiene/petchat/internal/media"
)

var (
	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

type bannerInfo struct {
	Addr          string
	UploadDir     string
	MaxSize       int64
	Provider      string
	Model         string
	VideoModel    string
	APIConfigured bool
}

func renderBanner(info bannerInfo) string {
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	api := okStyle.Render("configured")
	if !info.APIConfigured {
		api = warnStyle.Render("not configured (mock responses)")
	}

	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s %s", serviceName, version)),
		"",
		row("listening", info.Addr),
		row("uploads", info.UploadDir),
		row("formats", strings.Join(media.AllowedExtensions, ", ")),
		row("max size", units.BytesSize(float64(info.MaxSize))),
		row("provider", fmt.Sprintf("%s (%s)", info.Provider, info.Model)),
		row("video model", info.VideoModel),
		labelStyle.Render("api") + api,
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
