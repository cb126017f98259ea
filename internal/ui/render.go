// Package ui renders tasks for the terminal and hosts the interactive browser.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/nibzard/tasks-go/internal/task"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	styleID      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleStatus  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleTitle   = lipgloss.NewStyle().Bold(true)
	styleCursor  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Printer writes command output. Styling applies only when enabled and the
// writer is a terminal.
type Printer struct {
	w      io.Writer
	styled bool
	json   bool
	loc    *time.Location
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithJSON makes the printer emit encoded task records, one per line.
func WithJSON(enabled bool) PrinterOption {
	return func(p *Printer) {
		p.json = enabled
	}
}

// WithLocation sets the zone used to print timestamps.
func WithLocation(loc *time.Location) PrinterOption {
	return func(p *Printer) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// NewPrinter returns a printer for w.
func NewPrinter(w io.Writer, color bool, opts ...PrinterOption) *Printer {
	p := &Printer{
		w:      w,
		styled: color && IsTTY(w),
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Task prints one task.
func (p *Printer) Task(t task.Task) {
	if p.json {
		fmt.Fprintln(p.w, task.Encode(t))
		return
	}
	fmt.Fprintln(p.w, p.formatTask(t))
}

// Tasks prints every task, or a placeholder when there are none.
func (p *Printer) Tasks(tasks []task.Task) {
	if p.json {
		for _, t := range tasks {
			fmt.Fprintln(p.w, task.Encode(t))
		}
		return
	}
	if len(tasks) == 0 {
		fmt.Fprintln(p.w, p.style(styleMuted, "No tasks."))
		return
	}
	for _, t := range tasks {
		fmt.Fprintln(p.w, p.formatTask(t))
	}
}

// NotFound reports a missing task.
func (p *Printer) NotFound(id uint64) {
	if p.json {
		return
	}
	fmt.Fprintln(p.w, p.style(styleError, fmt.Sprintf("Task %d not found", id)))
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...any) {
	if p.json {
		return
	}
	fmt.Fprintln(p.w, p.style(styleSuccess, fmt.Sprintf(format, args...)))
}

// Line prints an unstyled line, also in JSON mode.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) formatTask(t task.Task) string {
	id := p.style(styleID, fmt.Sprintf("#%d", t.ID))
	status := p.style(statusStyle(t.Status), "["+t.Status+"]")
	times := p.style(styleMuted, fmt.Sprintf("created %s, updated %s",
		t.Created().In(p.loc).Format(timeLayout),
		t.Updated().In(p.loc).Format(timeLayout)))
	return fmt.Sprintf("%s %s %s  %s", id, status, t.Description, times)
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func statusStyle(status string) lipgloss.Style {
	if strings.EqualFold(status, "done") {
		return styleDone
	}
	return styleStatus
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
