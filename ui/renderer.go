// Package ui renders client command output for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aldehir/cache-service/cache"
	"github.com/aldehir/cache-service/types"
)

var (
	ColorCyan   = lipgloss.Color("6")
	ColorYellow = lipgloss.Color("3")
	ColorRed    = lipgloss.Color("1")
	ColorGreen  = lipgloss.Color("2")
	ColorGray   = lipgloss.Color("8")
)

var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorGray)
	LabelStyle   = lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(ColorYellow)

	InfoBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)
)

type Renderer struct {
	out     io.Writer
	err     io.Writer
	noColor bool
}

type Option func(*Renderer)

func WithOutput(w io.Writer) Option {
	return func(r *Renderer) {
		r.out = w
	}
}

func WithError(w io.Writer) Option {
	return func(r *Renderer) {
		r.err = w
	}
}

func WithNoColor(noColor bool) Option {
	return func(r *Renderer) {
		r.noColor = noColor
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		out: os.Stdout,
		err: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) render(style lipgloss.Style, text string) string {
	if r.noColor {
		return text
	}
	return style.Render(text)
}

func (r *Renderer) Success(msg string) {
	fmt.Fprintln(r.out, r.render(SuccessStyle, msg))
}

func (r *Renderer) Error(msg string) {
	fmt.Fprintln(r.err, r.render(ErrorStyle, "ERROR:")+" "+msg)
}

func (r *Renderer) Record(rec types.Record) {
	r.fields([][2]string{
		{"id", strconv.FormatInt(rec.ID, 10)},
		{"name", rec.Name},
		{"salary", strconv.FormatFloat(rec.Salary, 'f', 2, 64)},
	})
}

// Stats prints the counters followed by the cached ids, oldest first.
func (r *Renderer) Stats(s cache.Stats, keys []int64) {
	r.fields([][2]string{
		{"size", fmt.Sprintf("%d / %d", s.Size, s.MaxSize)},
		{"hits", strconv.FormatInt(s.Hits, 10)},
		{"misses", strconv.FormatInt(s.Misses, 10)},
		{"hit rate", fmt.Sprintf("%.1f%%", s.HitRate())},
		{"evictions", strconv.FormatInt(s.Evictions, 10)},
	})

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strconv.FormatInt(k, 10)
	}
	if len(ids) == 0 {
		fmt.Fprintln(r.out, r.render(MutedStyle, "(cache is empty)"))
		return
	}
	fmt.Fprintln(r.out, r.render(MutedStyle, "LRU → MRU: ")+strings.Join(ids, " "))
}

func (r *Renderer) fields(rows [][2]string) {
	width := 0
	for _, row := range rows {
		if len(row[0]) > width {
			width = len(row[0])
		}
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		label := fmt.Sprintf("%-*s", width, row[0])
		lines[i] = r.render(LabelStyle, label) + "  " + r.render(ValueStyle, row[1])
	}

	body := strings.Join(lines, "\n")
	if r.noColor {
		fmt.Fprintln(r.out, body)
		return
	}
	fmt.Fprintln(r.out, InfoBoxStyle.Render(body))
}
