package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbase/internal/core/domain"
)

// newReadyApp returns a sized app over memory-backed services.
func newReadyApp(t *testing.T) (*App, *testServices) {
	t.Helper()
	svc := newTestServices()
	app, err := NewApp(NewPorts(&MockSearchService{}, svc.content, svc.dashboard))
	require.NoError(t, err)
	app.SetDimensions(100, 40)
	return app, svc
}

// drain runs cmd and feeds its message back into the app.
func drain(app *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		app.Update(msg)
	}
}

func TestNewApp_Success(t *testing.T) {
	app, err := NewApp(newTestPorts())

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{})

	assert.Error(t, err)
	assert.Nil(t, app)
}

func TestApp_WithContext(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")

	assert.Equal(t, app, app.WithContext(ctx))
}

func TestApp_Init(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	assert.NotNil(t, app.Init())
}

func TestApp_Update_WindowSize(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	model, cmd := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
	assert.Contains(t, app.View(), "kbase")
}

func TestApp_CtrlCQuits(t *testing.T) {
	app, _ := newReadyApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_QuitMessage(t *testing.T) {
	app, _ := newReadyApp(t)

	_, cmd := app.Update(messages.Quit{})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_SearchFlow(t *testing.T) {
	app, _ := newReadyApp(t)
	app.Update(messages.ViewChanged{View: messages.ViewSearch})
	require.Equal(t, messages.ViewSearch, app.CurrentView())

	for _, r := range "plan" {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	assert.Equal(t, "plan", app.Query())

	results := []domain.SearchResult{
		{ChunkID: 4, Content: domain.TextRef(2), DisplayName: "Roadmap", ChunkText: "plan", Similarity: 0.9},
	}
	_, _ = app.Update(messages.SearchCompleted{Results: results})

	assert.Len(t, app.Results(), 1)
	assert.NoError(t, app.Err())
}

func TestApp_SearchError(t *testing.T) {
	app, _ := newReadyApp(t)
	app.Update(messages.ViewChanged{View: messages.ViewSearch})

	app.Update(messages.SearchCompleted{Err: domain.ErrEmbeddingUnavailable})

	assert.ErrorIs(t, app.Err(), domain.ErrEmbeddingUnavailable)
}

func TestApp_ContentToItemAndBack(t *testing.T) {
	app, svc := newReadyApp(t)
	created, err := svc.content.CreateFile(context.Background(), domain.NewFile{
		Filename: "d4.pdf", OriginalName: "contract.pdf", Size: 512,
		MIMEType: "application/pdf", StoragePath: "/data/d4.pdf",
	})
	require.NoError(t, err)

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewContent})
	drain(app, cmd)
	assert.Contains(t, app.View(), "contract.pdf")

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	selected := cmd()
	assert.Equal(t, messages.ItemSelected{Ref: created.Ref(), Back: messages.ViewContent}, selected)

	_, cmd = app.Update(selected)
	assert.Equal(t, messages.ViewItem, app.CurrentView())
	drain(app, cmd)
	assert.Contains(t, app.View(), "/data/d4.pdf")

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(app, cmd)
	assert.Equal(t, messages.ViewContent, app.CurrentView())
}

func TestApp_DashboardUpdatesMenuQueue(t *testing.T) {
	app, svc := newReadyApp(t)
	_, err := svc.content.CreateText(context.Background(), domain.NewText{Title: "Inbox", Body: "triage"})
	require.NoError(t, err)

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewDashboard})
	drain(app, cmd)
	assert.Contains(t, app.View(), "Inbox")

	app.Update(messages.ViewChanged{View: messages.ViewMenu})
	assert.Contains(t, app.View(), "Dashboard (1 queued)")
}

func TestApp_HelpView(t *testing.T) {
	app, _ := newReadyApp(t)
	app.Update(messages.ViewChanged{View: messages.ViewHelp})

	assert.Contains(t, app.View(), "Process pending queue")

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_SettingsWithoutService(t *testing.T) {
	app, _ := newReadyApp(t)

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewSettings})
	drain(app, cmd)

	assert.Equal(t, messages.ViewSettings, app.CurrentView())
	assert.Contains(t, app.View(), "settings service not available")
}

func TestApp_ErrorOccurred(t *testing.T) {
	app, _ := newReadyApp(t)
	boom := errors.New("boom")

	app.Update(messages.ErrorOccurred{Err: boom})

	assert.Equal(t, boom, app.Err())
}

func TestApp_MenuNavigation(t *testing.T) {
	app, _ := newReadyApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	assert.Equal(t, messages.ViewChanged{View: messages.ViewContent}, cmd())
}
