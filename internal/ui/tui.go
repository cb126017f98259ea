package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/nibzard/tasks-go/internal/store"
	"github.com/nibzard/tasks-go/internal/task"
)

// DoneStatus is the status the browser toggles tasks to.
const DoneStatus = "done"

// BrowserOption configures the browser.
type BrowserOption func(*browserModel)

// WithOpenStatus sets the status a done task toggles back to.
func WithOpenStatus(status string) BrowserOption {
	return func(m *browserModel) {
		if status != "" {
			m.openStatus = status
		}
	}
}

// WithStyles enables lipgloss styling in the browser view.
func WithStyles(enabled bool) BrowserOption {
	return func(m *browserModel) {
		m.styled = enabled
	}
}

// WithBrowserLogger sets the logger for watcher diagnostics.
func WithBrowserLogger(l *log.Logger) BrowserOption {
	return func(m *browserModel) {
		if l != nil {
			m.logger = l
		}
	}
}

// RunBrowser starts the interactive browser over s. The view refreshes when
// the store file changes on disk.
func RunBrowser(ctx context.Context, s *store.Store, opts ...BrowserOption) error {
	if !IsTTY(os.Stdout) {
		return errors.New("browse requires a TTY")
	}

	model := newBrowserModel(ctx, s, opts...)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	// Writes replace the file by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(s.Path())); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.Path()), err)
	}
	changes := make(chan struct{}, 1)
	go forwardChanges(ctx, watcher, s.Path(), changes, model.logger)
	model.changes = changes

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// forwardChanges coalesces watcher events for path into changes.
func forwardChanges(ctx context.Context, w *fsnotify.Watcher, path string, changes chan<- struct{}, logger *log.Logger) {
	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			select {
			case changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "err", err)
		}
	}
}

type browserModel struct {
	ctx        context.Context
	store      *store.Store
	logger     *log.Logger
	openStatus string
	styled     bool
	changes    <-chan struct{}

	tasks    []task.Task
	visible  []task.Task
	filter   string // empty shows every status
	cursor   int
	loadErr  error
	message  string
	showHelp bool
}

type fileChangedMsg struct{}

type toggledMsg struct {
	id     uint64
	status string
	err    error
}

func newBrowserModel(ctx context.Context, s *store.Store, opts ...BrowserOption) *browserModel {
	m := &browserModel{
		ctx:        ctx,
		store:      s,
		logger:     log.New(io.Discard),
		openStatus: task.DefaultStatus,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *browserModel) Init() tea.Cmd {
	m.refresh()
	return waitForChange(m.changes)
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case fileChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)
	case toggledMsg:
		if msg.err != nil {
			m.message = "Update failed: " + msg.err.Error()
		} else {
			m.message = fmt.Sprintf("Task %d is now %s", msg.id, msg.status)
		}
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m *browserModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		if len(m.visible) > 0 {
			m.cursor = len(m.visible) - 1
		}
	case "f":
		m.filter = nextFilter(m.filter, statuses(m.tasks))
		m.applyFilter()
	case "0":
		m.filter = ""
		m.applyFilter()
	case "r", "f5":
		m.message = ""
		m.refresh()
	case "x", " ":
		if t, ok := m.selected(); ok {
			return m, m.toggle(t)
		}
	case "h", "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *browserModel) toggle(t task.Task) tea.Cmd {
	next := DoneStatus
	if strings.EqualFold(t.Status, DoneStatus) {
		next = m.openStatus
	}
	ctx, s := m.ctx, m.store
	return func() tea.Msg {
		_, err := s.Update(ctx, t.ID, task.FieldStatus, next)
		return toggledMsg{id: t.ID, status: next, err: err}
	}
}

func (m *browserModel) selected() (task.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return task.Task{}, false
	}
	return m.visible[m.cursor], true
}

func (m *browserModel) refresh() {
	tasks, err := m.store.List(m.ctx)
	if err != nil {
		m.loadErr = err
		m.tasks = nil
		m.visible = nil
		return
	}
	m.loadErr = nil
	m.tasks = tasks
	m.applyFilter()
}

// applyFilter recomputes the visible rows and keeps the cursor on the same
// task when it is still visible.
func (m *browserModel) applyFilter() {
	var selectedID uint64
	prev, hadSelection := m.selected()
	if hadSelection {
		selectedID = prev.ID
	}

	m.visible = m.visible[:0]
	for _, t := range m.tasks {
		if m.filter == "" || t.Status == m.filter {
			m.visible = append(m.visible, t)
		}
	}

	if hadSelection {
		for i, t := range m.visible {
			if t.ID == selectedID {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *browserModel) View() string {
	var b strings.Builder
	title := "Tasks: " + m.store.Path()
	b.WriteString(m.style(styleTitle, title) + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b)
		return b.String()
	}

	if m.filter != "" {
		fmt.Fprintf(&b, "Filter: %s (0 to clear)\n\n", m.filter)
	}

	if m.loadErr != nil {
		b.WriteString("Error loading task file:\n")
		b.WriteString("  " + m.style(styleError, m.loadErr.Error()) + "\n\n")
		writeFooter(&b)
		return b.String()
	}

	writeCounts(&b, m.tasks)

	if len(m.visible) == 0 {
		b.WriteString("  No tasks.\n")
	}
	for i, t := range m.visible {
		marker := "  "
		if i == m.cursor {
			marker = m.style(styleCursor, "> ")
		}
		check := " "
		if strings.EqualFold(t.Status, DoneStatus) {
			check = "x"
		}
		fmt.Fprintf(&b, "%s[%s] %s %s %s\n", marker, check,
			m.style(styleID, fmt.Sprintf("#%d", t.ID)),
			t.Description,
			m.style(statusStyle(t.Status), "("+t.Status+")"))
	}
	b.WriteString("\n")

	if m.message != "" {
		b.WriteString(m.message + "\n\n")
	}
	writeFooter(&b)
	return b.String()
}

func (m *browserModel) style(s lipgloss.Style, text string) string {
	if !m.styled {
		return text
	}
	return s.Render(text)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return fileChangedMsg{}
	}
}

// statuses returns the distinct statuses in tasks, sorted.
func statuses(tasks []task.Task) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		if !seen[t.Status] {
			seen[t.Status] = true
			out = append(out, t.Status)
		}
	}
	sort.Strings(out)
	return out
}

// nextFilter cycles all -> each status -> all.
func nextFilter(current string, all []string) string {
	if len(all) == 0 {
		return ""
	}
	if current == "" {
		return all[0]
	}
	for i, s := range all {
		if s == current {
			if i+1 < len(all) {
				return all[i+1]
			}
			return ""
		}
	}
	return all[0]
}

func writeCounts(b *strings.Builder, tasks []task.Task) {
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	parts := make([]string, 0, len(counts))
	for _, s := range statuses(tasks) {
		parts = append(parts, fmt.Sprintf("%s: %d", s, counts[s]))
	}
	fmt.Fprintf(b, "  Total: %d", len(tasks))
	if len(parts) > 0 {
		b.WriteString("  " + strings.Join(parts, "  "))
	}
	b.WriteString("\n\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  j, down      Move down\n")
	b.WriteString("  k, up        Move up\n")
	b.WriteString("  g, G         Jump to first or last task\n")
	b.WriteString("  x, space     Toggle done\n")
	b.WriteString("  f            Cycle status filter\n")
	b.WriteString("  0            Clear filter\n")
	b.WriteString("  r, F5        Refresh data\n")
	b.WriteString("  h, ?         Toggle this help screen\n\n")
}

func writeFooter(b *strings.Builder) {
	b.WriteString("Press h for help | q to quit | Refreshes on file change\n")
}
