// Package item provides the single content item view for the TUI.
package item

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// View shows an item's metadata and a scrollable body.
type View struct {
	styles  *styles.Styles
	content driving.ContentService
	ctx     context.Context

	ref          domain.ContentRef
	back         messages.ViewType
	item         *domain.ContentItem
	lines        []string
	scrollOffset int
	width        int
	height       int
	err          error
	loading      bool
}

// NewView creates a new item view.
func NewView(s *styles.Styles, content driving.ContentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:  s,
		content: content,
		ctx:     context.Background(),
		back:    messages.ViewMenu,
		width:   80,
		height:  24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Open loads ref. Esc returns to back.
func (v *View) Open(ref domain.ContentRef, back messages.ViewType) tea.Cmd {
	v.ref = ref
	v.back = back
	v.item = nil
	v.lines = nil
	v.scrollOffset = 0
	v.err = nil
	v.loading = true
	return func() tea.Msg {
		if v.content == nil {
			return messages.ItemLoaded{Err: fmt.Errorf("content service not available")}
		}
		item, err := v.content.Get(v.ctx, ref)
		return messages.ItemLoaded{Item: item, Err: err}
	}
}

// Update handles messages for the item view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ItemLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.item = msg.Item
			v.wrap()
		}
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "pgup", "ctrl+u":
		v.scrollOffset = max(v.scrollOffset-v.visibleLines(), 0)
	case "pgdown", "ctrl+d":
		v.scrollOffset = min(v.scrollOffset+v.visibleLines(), v.maxScrollOffset())
	case "home", "g":
		v.scrollOffset = 0
	case "end", "G":
		v.scrollOffset = v.maxScrollOffset()
	case "esc":
		back := v.back
		return v, func() tea.Msg {
			return messages.ViewChanged{View: back}
		}
	}
	return v, nil
}

// body is the text shown below the header.
func (v *View) body() string {
	if v.item == nil {
		return ""
	}
	if v.item.Text != nil {
		return v.item.Text.Body
	}
	if f := v.item.File; f != nil {
		return fmt.Sprintf("Stored as: %s\nMIME type: %s\nSize:      %d bytes\nPath:      %s",
			f.Filename, f.MIMEType, f.Size, f.StoragePath)
	}
	return ""
}

// wrap splits the body into lines that fit the view width.
func (v *View) wrap() {
	width := max(v.width-4, 20)
	v.lines = v.lines[:0]
	for _, line := range strings.Split(v.body(), "\n") {
		r := []rune(line)
		for len(r) > width {
			v.lines = append(v.lines, string(r[:width]))
			r = r[width:]
		}
		v.lines = append(v.lines, string(r))
	}
	v.scrollOffset = min(v.scrollOffset, v.maxScrollOffset())
}

func (v *View) visibleLines() int {
	return max(v.height-9, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.lines)-v.visibleLines(), 0)
}

// View renders the item.
func (v *View) View() string {
	var b strings.Builder

	title := v.ref.String()
	if v.item != nil {
		title = v.item.DisplayName()
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")

	switch {
	case v.loading:
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render("Loading..."))
	case v.err != nil:
		b.WriteString("\n")
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case v.item != nil:
		b.WriteString(v.renderHeader())
		b.WriteString("\n")
		b.WriteString(strings.Repeat("─", min(max(v.width-4, 1), 60)))
		b.WriteString("\n")
		end := min(v.scrollOffset+v.visibleLines(), len(v.lines))
		for _, line := range v.lines[v.scrollOffset:end] {
			b.WriteString(v.styles.Normal.Render(line))
			b.WriteString("\n")
		}
		if len(v.lines) > v.visibleLines() {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("[%d-%d of %d lines]", v.scrollOffset+1, end, len(v.lines))))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[j/k] scroll  [g/G] top/bottom  [esc] back"))
	return b.String()
}

func (v *View) renderHeader() string {
	return fmt.Sprintf("%s  %s  %s",
		v.styles.Muted.Render(v.item.Ref().String()),
		v.styles.Status(v.item.Status).Render(string(v.item.Status)),
		v.styles.Muted.Render("added "+v.item.CreatedAt.Local().Format("2006-01-02 15:04")))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	if v.item != nil {
		v.wrap()
	}
}

// Item returns the loaded item.
func (v *View) Item() *domain.ContentItem {
	return v.item
}

// Back returns the view esc returns to.
func (v *View) Back() messages.ViewType {
	return v.back
}

// ScrollOffset returns the first visible line.
func (v *View) ScrollOffset() int {
	return v.scrollOffset
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
