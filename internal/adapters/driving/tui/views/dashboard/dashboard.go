// Package dashboard provides the dashboard view for the TUI.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// maxBarWidth caps the daily upload bars.
const maxBarWidth = 30

// View shows corpus totals, the processing queue, and daily uploads.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	dashboard driving.DashboardService
	pipeline  driving.Pipeline
	ctx       context.Context

	stats    *domain.DashboardStats
	queue    []domain.QueueItem
	selected int
	notice   string
	width    int
	height   int
	err      error
	loading  bool
	running  bool
}

// NewView creates a new dashboard view. The pipeline may be nil.
func NewView(s *styles.Styles, dashboard driving.DashboardService, pipeline driving.Pipeline) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:    s,
		keymap:    keymap.DefaultKeyMap(),
		dashboard: dashboard,
		pipeline:  pipeline,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the dashboard.
func (v *View) Init() tea.Cmd {
	return v.Refresh()
}

// Refresh reloads stats and the queue.
func (v *View) Refresh() tea.Cmd {
	v.loading = true
	return func() tea.Msg {
		if v.dashboard == nil {
			return messages.DashboardLoaded{Err: errors.New("dashboard service not available")}
		}
		stats, err := v.dashboard.Stats(v.ctx)
		if err != nil {
			return messages.DashboardLoaded{Err: err}
		}
		queue, err := v.dashboard.ProcessingQueue(v.ctx)
		return messages.DashboardLoaded{Stats: stats, Queue: queue, Err: err}
	}
}

// Update handles messages for the dashboard view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DashboardLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.stats = msg.Stats
			v.queue = msg.Queue
			if v.selected >= len(v.queue) {
				v.selected = max(len(v.queue)-1, 0)
			}
		}
		return v, nil

	case messages.PendingProcessed:
		v.running = false
		if msg.Err != nil {
			v.err = msg.Err
		} else {
			r := msg.Report
			v.notice = fmt.Sprintf("Processed queue: %d completed, %d failed, %d skipped, %d chunks",
				r.Completed, r.Failed, r.Skipped, r.Chunks)
		}
		return v, v.Refresh()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.queue)-1 {
			v.selected++
		}
	case "r":
		v.notice = ""
		return v, v.Refresh()
	case "p":
		if v.running {
			return v, nil
		}
		return v, v.processPending()
	case "enter":
		if v.selected < len(v.queue) {
			ref := v.queue[v.selected].Ref()
			return v, func() tea.Msg {
				return messages.ItemSelected{Ref: ref, Back: messages.ViewDashboard}
			}
		}
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}
	return v, nil
}

func (v *View) processPending() tea.Cmd {
	if v.pipeline == nil {
		v.err = errors.New("processing is not available: no embedding provider configured")
		return nil
	}
	v.running = true
	v.notice = "Processing queue..."
	return func() tea.Msg {
		report, err := v.pipeline.ProcessPending(v.ctx)
		return messages.PendingProcessed{Report: report, Err: err}
	}
}

// View renders the dashboard.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Dashboard"))
	b.WriteString("\n\n")

	switch {
	case v.loading && v.stats == nil:
		b.WriteString(v.styles.Muted.Render("Loading..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	}

	if v.stats != nil {
		b.WriteString(v.renderCards())
		b.WriteString("\n\n")
		b.WriteString(v.renderQueue())
		b.WriteString("\n")
		b.WriteString(v.renderUsage())
	}

	if v.notice != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Success.Render(v.notice))
	}
	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render(keymap.HelpLine(v.keymap.DashboardHelp())))
	return b.String()
}

func (v *View) renderCards() string {
	s := v.stats
	card := func(figure, label string) string {
		return v.styles.Card.Render(v.styles.Figure.Render(figure) + "\n" + v.styles.Label.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		card(fmt.Sprintf("%d", s.TotalFiles), "files"),
		card(fmt.Sprintf("%d", s.TotalTextEntries), "text entries"),
		card(fmt.Sprintf("%d", s.TotalEmbeddings), "embeddings"),
		card(fmt.Sprintf("%.2f MB", s.TotalStorageMB), "storage"),
		card(fmt.Sprintf("%d", s.ProcessingQueueSize), "queued"),
		card(fmt.Sprintf("%d", s.RecentUploads), "last 24h"),
	)
}

func (v *View) renderQueue() string {
	var b strings.Builder
	b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Processing queue (%d)", len(v.queue))))
	b.WriteString("\n")
	if len(v.queue) == 0 {
		b.WriteString(v.styles.Muted.Render("  Queue is empty"))
		b.WriteString("\n")
		return b.String()
	}

	visible := max(v.height-22, 3)
	start := max(v.selected-visible+1, 0)
	for i := start; i < len(v.queue) && i < start+visible; i++ {
		q := v.queue[i]
		line := fmt.Sprintf("%-12s %-32s", q.Ref().String(), q.Name)
		if i == v.selected {
			b.WriteString(v.styles.Selected.Render("> " + line + " " + string(q.Status)))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + line + " "))
			b.WriteString(v.styles.Status(q.Status).Render(string(q.Status)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (v *View) renderUsage() string {
	var b strings.Builder
	b.WriteString(v.styles.Subtitle.Render("Daily uploads"))
	b.WriteString("\n")

	peak := 0
	for _, d := range v.stats.DailyUsage {
		peak = max(peak, d.Uploads)
	}
	for _, d := range v.stats.DailyUsage {
		width := 0
		if peak > 0 {
			width = d.Uploads * maxBarWidth / peak
		}
		if d.Uploads > 0 && width == 0 {
			width = 1
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			v.styles.Muted.Render(d.Date),
			v.styles.Success.Render(fmt.Sprintf("%-*s", maxBarWidth, strings.Repeat("█", width))),
			v.styles.Normal.Render(fmt.Sprintf("%d (%.2f MB)", d.Uploads, d.StorageMB))))
	}
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Stats returns the loaded stats.
func (v *View) Stats() *domain.DashboardStats {
	return v.stats
}

// Queue returns the loaded queue.
func (v *View) Queue() []domain.QueueItem {
	return v.queue
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
