// Package settings provides the settings view for the TUI.
package settings

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// View lists settings and edits one key at a time.
type View struct {
	styles          *styles.Styles
	settingsService driving.SettingsService

	entries  []domain.SettingEntry
	selected int
	editor   *input.Field
	editing  bool
	notice   string
	err      error
	width    int
	height   int
}

// NewView creates a new settings view.
func NewView(s *styles.Styles, settingsService driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	editor := input.NewField(s, "", "")
	editor.Blur()
	return &View{
		styles:          s,
		settingsService: settingsService,
		editor:          editor,
		width:           80,
		height:          24,
	}
}

// Init loads the settings.
func (v *View) Init() tea.Cmd {
	return v.load()
}

func (v *View) load() tea.Cmd {
	return func() tea.Msg {
		if v.settingsService == nil {
			return messages.SettingsLoaded{Err: errors.New("settings service not available")}
		}
		settings, err := v.settingsService.Get()
		return messages.SettingsLoaded{Settings: settings, Err: err}
	}
}

// Update handles messages for the settings view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.editing {
			return v.handleEditKey(msg)
		}
		return v.handleListKey(msg)

	case messages.SettingsLoaded:
		v.err = msg.Err
		if msg.Err == nil && msg.Settings != nil {
			v.entries = msg.Settings.Entries()
			if v.selected >= len(v.entries) {
				v.selected = 0
			}
		}
		return v, nil

	case messages.SettingsSaved:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.notice = fmt.Sprintf("Saved %s", msg.Key)
		return v, v.load()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}
	return v, nil
}

func (v *View) handleListKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.entries)-1 {
			v.selected++
		}
	case "enter":
		if v.selected < len(v.entries) {
			return v, v.startEdit(v.entries[v.selected])
		}
	case "r":
		v.notice = ""
		return v, v.load()
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}
	return v, nil
}

func (v *View) startEdit(entry domain.SettingEntry) tea.Cmd {
	secret := isSecret(entry.Key)
	v.editing = true
	v.notice = ""
	v.err = nil
	v.editor.SetLabel(entry.Key + ": ")
	v.editor.SetMasked(secret)
	v.editor.SetWidth(v.width)
	if secret {
		v.editor.SetValue("")
	} else {
		v.editor.SetValue(entry.Value)
	}
	return v.editor.Focus()
}

func (v *View) handleEditKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		v.stopEdit()
		return v, nil
	case "enter":
		key := v.entries[v.selected].Key
		value := strings.TrimSpace(v.editor.Value())
		v.stopEdit()
		return v, func() tea.Msg {
			if v.settingsService == nil {
				return messages.SettingsSaved{Key: key, Err: errors.New("settings service not available")}
			}
			return messages.SettingsSaved{Key: key, Err: v.settingsService.Set(key, value)}
		}
	}
	var cmd tea.Cmd
	v.editor, cmd = v.editor.Update(msg)
	return v, cmd
}

func (v *View) stopEdit() {
	v.editing = false
	v.editor.Blur()
	v.editor.Reset()
}

// isSecret reports whether a key holds a credential.
func isSecret(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "_dsn")
}

// View renders the settings list.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Settings"))
	b.WriteString("\n\n")

	if len(v.entries) == 0 && v.err == nil {
		b.WriteString(v.styles.Muted.Render("Loading..."))
		b.WriteString("\n")
	}

	keyWidth := 0
	for _, e := range v.entries {
		keyWidth = max(keyWidth, len(e.Key))
	}
	for i, e := range v.entries {
		value := e.Value
		if value == "" {
			value = "(not set)"
		}
		line := fmt.Sprintf("%-*s  %s", keyWidth, e.Key, value)
		if i == v.selected {
			b.WriteString(v.styles.Selected.Render("> " + line))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + line))
		}
		b.WriteString("\n")
	}

	if v.editing {
		b.WriteString("\n")
		b.WriteString(v.editor.View())
		b.WriteString("\n")
	}
	if v.err != nil {
		b.WriteString("\n")
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	}
	if v.notice != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Success.Render(v.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if v.editing {
		b.WriteString(v.styles.Help.Render("[enter] save  [esc] cancel"))
	} else {
		b.WriteString(v.styles.Help.Render("[enter] edit  [r] reload  [esc] back"))
	}
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.editor.SetWidth(width)
}

// Entries returns the displayed settings.
func (v *View) Entries() []domain.SettingEntry {
	return v.entries
}

// Selected returns the selected row.
func (v *View) Selected() int {
	return v.selected
}

// Editing reports whether a value is being edited.
func (v *View) Editing() bool {
	return v.editing
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
