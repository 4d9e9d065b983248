package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/listsync/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Title renders s as a heading.
func Title(s string) string { return styles.title.Render(s) }

// Success renders s in the success color.
func Success(s string) string { return styles.ok.Render(s) }

// Error renders s in the error color.
func Error(s string) string { return styles.err.Render(s) }

// Warning renders s in the warning color.
func Warning(s string) string { return styles.warn.Render(s) }

// Muted renders s as secondary text.
func Muted(s string) string { return styles.help.Render(s) }

func handled(s models.ItemStatus) bool {
	switch s {
	case models.ItemDone, models.ItemUnavailable, models.ItemSubstituted:
		return true
	}
	return false
}

// StatusLabel renders an item status with its color.
func StatusLabel(s models.ItemStatus) string {
	label := s.Label()
	switch s {
	case models.ItemDone:
		return styles.ok.Render(label)
	case models.ItemInProgress:
		return styles.title.Render(label)
	case models.ItemUnavailable:
		return styles.err.Render(label)
	case models.ItemSubstituted:
		return styles.warn.Render(label)
	default:
		return styles.help.Render(label)
	}
}

// ListStatusLabel renders a list status with its color.
func ListStatusLabel(s models.ListStatus) string {
	switch s {
	case models.ListCompleted:
		return styles.ok.Render(string(s))
	case models.ListShared:
		return styles.title.Render(string(s))
	default:
		return styles.help.Render(string(s))
	}
}

// FormatProgress summarizes p as "3/5 (60%)".
func FormatProgress(p models.Progress) string {
	return fmt.Sprintf("%d/%d (%.0f%%)", p.Done(), p.Total, p.Percent())
}

// ProgressBar draws p as a bar of the given width, e.g. "[#####-----]".
func ProgressBar(p models.Progress, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if p.Total > 0 {
		filled = p.Done() * width / p.Total
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// ShareLabel describes the share indicator of a list view.
func ShareLabel(status models.ShareStatus, shopkeeper string, revoked bool) string {
	switch {
	case revoked:
		return styles.err.Render("share revoked")
	case status == models.ShareAccepted && shopkeeper != "":
		return styles.ok.Render("accepted by " + shopkeeper)
	case status == models.ShareAccepted:
		return styles.ok.Render("accepted")
	case shopkeeper != "":
		return styles.warn.Render("shared with " + shopkeeper)
	case status == models.ShareActive:
		return styles.warn.Render("shared")
	}
	return ""
}

// Board renders items as a styled terminal table for interactive output.
func Board(export *models.ListExport) string {
	var b strings.Builder
	p := models.ProgressOf(export.Items)

	b.WriteString(Title(export.List.Name))
	b.WriteString("  " + ListStatusLabel(export.List.Status))
	if export.Share != nil {
		if label := ShareLabel(export.Share.Status, export.Share.ShopkeeperName, false); label != "" {
			b.WriteString("  " + label)
		}
	}
	b.WriteString("\n")
	b.WriteString(Muted(fmt.Sprintf("%s %s", ProgressBar(p, 20), FormatProgress(p))))
	b.WriteString("\n\n")

	for _, item := range export.Items {
		fmt.Fprintf(&b, "  %-14s %s × %s", StatusLabel(item.Status), quantity(item), item.Name)
		if item.Notes != "" {
			b.WriteString(" " + Muted(item.Notes))
		}
		b.WriteString(" " + Muted(item.Key()))
		b.WriteString("\n")
	}
	return b.String()
}
