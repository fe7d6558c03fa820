// Package content provides the content list view for the TUI.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// ErrNoPipeline is reported when processing is requested without a pipeline.
var ErrNoPipeline = errors.New("processing is not available: no embedding provider configured")

// tabs are the listed families. Text includes documents.
var tabs = []domain.ContentKind{domain.KindFile, domain.KindText}

// View lists content items with their processing status.
type View struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	content  driving.ContentService
	pipeline driving.Pipeline
	ctx      context.Context

	tab          int
	items        []domain.ContentItem
	selected     int
	scrollOffset int
	notice       string
	width        int
	height       int
	err          error
	loading      bool
}

// NewView creates a new content view. The pipeline may be nil.
func NewView(s *styles.Styles, content driving.ContentService, pipeline driving.Pipeline) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:   s,
		keymap:   keymap.DefaultKeyMap(),
		content:  content,
		pipeline: pipeline,
		ctx:      context.Background(),
		width:    80,
		height:   24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the current tab.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

// Kind returns the listed kind.
func (v *View) Kind() domain.ContentKind {
	return tabs[v.tab]
}

func (v *View) load() tea.Cmd {
	kind := v.Kind()
	return func() tea.Msg {
		if v.content == nil {
			return messages.ContentLoaded{Kind: kind, Err: errors.New("content service not available")}
		}
		items, err := v.content.List(v.ctx, kind)
		return messages.ContentLoaded{Kind: kind, Items: items, Err: err}
	}
}

// Update handles messages for the content view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ContentLoaded:
		if msg.Kind != v.Kind() {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.items = msg.Items
			if v.selected >= len(v.items) {
				v.selected = max(len(v.items)-1, 0)
			}
			v.adjustScroll()
		}
		return v, nil

	case messages.ItemReset:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = fmt.Sprintf("%s reset to pending", msg.Ref)
		return v, v.load()

	case messages.ItemProcessed:
		if msg.Err != nil {
			v.err = msg.Err
			return v, v.load()
		}
		v.notice = fmt.Sprintf("%s %s with %d chunks", msg.Ref, msg.Outcome.Status, msg.Outcome.Chunks)
		return v, v.load()

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
			v.adjustScroll()
		}
	case "down", "j":
		if v.selected < len(v.items)-1 {
			v.selected++
			v.adjustScroll()
		}
	case "tab":
		v.tab = (v.tab + 1) % len(tabs)
		v.items = nil
		v.selected = 0
		v.scrollOffset = 0
		v.err = nil
		v.notice = ""
		v.loading = true
		return v, v.load()
	case "r":
		v.notice = ""
		v.loading = true
		return v, v.load()
	case "enter":
		if item := v.SelectedItem(); item != nil {
			ref := item.Ref()
			return v, func() tea.Msg {
				return messages.ItemSelected{Ref: ref, Back: messages.ViewContent}
			}
		}
	case "x":
		if item := v.SelectedItem(); item != nil {
			return v, v.reset(item.Ref())
		}
	case "p":
		if item := v.SelectedItem(); item != nil {
			return v, v.process(item.Ref())
		}
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}
	return v, nil
}

func (v *View) reset(ref domain.ContentRef) tea.Cmd {
	return func() tea.Msg {
		_, err := v.content.ResetToPending(v.ctx, ref)
		return messages.ItemReset{Ref: ref, Err: err}
	}
}

func (v *View) process(ref domain.ContentRef) tea.Cmd {
	v.notice = fmt.Sprintf("Processing %s...", ref)
	return func() tea.Msg {
		if v.pipeline == nil {
			return messages.ItemProcessed{Ref: ref, Err: ErrNoPipeline}
		}
		outcome, err := v.pipeline.Process(v.ctx, ref)
		return messages.ItemProcessed{Ref: ref, Outcome: outcome, Err: err}
	}
}

func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

func (v *View) visibleItemCount() int {
	return max(v.height-9, 1)
}

// View renders the content list.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Content - %ss (%d)", v.Kind(), len(v.items))))
	b.WriteString("\n")
	b.WriteString(v.renderTabs())
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.items) == 0:
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("No %s items yet.", v.Kind())))
	default:
		visible := v.visibleItemCount()
		for i := v.scrollOffset; i < len(v.items) && i < v.scrollOffset+visible; i++ {
			b.WriteString(v.renderItem(i, &v.items[i]))
			b.WriteString("\n")
		}
		if len(v.items) > visible {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
				v.scrollOffset+1, min(v.scrollOffset+visible, len(v.items)), len(v.items))))
		}
	}

	if v.notice != "" {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Success.Render(v.notice))
	}
	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render(keymap.HelpLine(v.keymap.ContentHelp())))
	return b.String()
}

func (v *View) renderTabs() string {
	parts := make([]string, len(tabs))
	for i, k := range tabs {
		label := " " + string(k) + "s "
		if i == v.tab {
			parts[i] = v.styles.Selected.Render(label)
		} else {
			parts[i] = v.styles.Muted.Render(label)
		}
	}
	return strings.Join(parts, " ")
}

func (v *View) renderItem(index int, item *domain.ContentItem) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	nameWidth := max(v.width-40, 12)
	name := item.DisplayName()
	if r := []rune(name); len(r) > nameWidth {
		name = string(r[:nameWidth-3]) + "..."
	}

	ref := fmt.Sprintf("%-12s", item.Ref().String())
	created := item.CreatedAt.Local().Format("2006-01-02 15:04")
	status := fmt.Sprintf("%-10s", item.Status)

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%s %-*s %s %s", indicator, ref, nameWidth, name, status, created))
	}
	return v.styles.Normal.Render(fmt.Sprintf("%s%s %-*s ", indicator, ref, nameWidth, name)) +
		v.styles.Status(item.Status).Render(status) + " " +
		v.styles.Muted.Render(created)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Items returns the listed items.
func (v *View) Items() []domain.ContentItem {
	return v.items
}

// SelectedIndex returns the selected row.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedItem returns the selected item, or nil when the list is empty.
func (v *View) SelectedItem() *domain.ContentItem {
	if v.selected < 0 || v.selected >= len(v.items) {
		return nil
	}
	return &v.items[v.selected]
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
