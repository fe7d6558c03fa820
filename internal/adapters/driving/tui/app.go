package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/views/content"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/views/dashboard"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/views/item"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/views/settings"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/logger"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles

	menuView      *menu.View
	searchView    *search.View
	contentView   *content.View
	itemView      *item.View
	dashboardView *dashboard.View
	settingsView  *settings.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has received its first window size.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	searchView := search.NewView(s, keymap.DefaultKeyMap(), ports.Search)
	if ports.Settings != nil {
		if cfg, err := ports.Settings.Get(); err == nil {
			searchView.SetOptions(cfg.Search.Limit, cfg.Search.Threshold)
		} else {
			logger.Warn("tui: loading search settings: %v", err)
		}
	}

	return &App{
		ports:         ports,
		ctx:           context.Background(),
		styles:        s,
		menuView:      menu.NewView(s),
		searchView:    searchView,
		contentView:   content.NewView(s, ports.Content, ports.Pipeline),
		itemView:      item.NewView(s, ports.Content),
		dashboardView: dashboard.NewView(s, ports.Dashboard, ports.Pipeline),
		settingsView:  settings.NewView(s, ports.Settings),
		currentView:   messages.ViewMenu,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.contentView.WithContext(ctx)
	a.itemView.WithContext(ctx)
	a.dashboardView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
// The dashboard is loaded up front so the menu can show the queue size.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("kbase"),
		a.dashboardView.Refresh(),
	)
}

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo,funlen // central message handler requires complexity
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.currentView == messages.ViewHelp {
			if msg.Type == tea.KeyEsc {
				a.currentView = messages.ViewMenu
			}
			return a, nil
		}
		return a, a.forward(msg)

	case messages.ViewChanged:
		a.currentView = msg.View
		switch msg.View {
		case messages.ViewSearch:
			a.searchView.Reset()
			return a, a.searchView.Init()
		case messages.ViewContent:
			return a, a.contentView.Init()
		case messages.ViewDashboard:
			return a, a.dashboardView.Refresh()
		case messages.ViewSettings:
			return a, a.settingsView.Init()
		case messages.ViewMenu, messages.ViewItem, messages.ViewHelp:
		}
		return a, nil

	case messages.ItemSelected:
		a.currentView = messages.ViewItem
		return a, a.itemView.Open(msg.Ref, msg.Back)

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.ContentLoaded, messages.ItemReset, messages.ItemProcessed:
		a.contentView, cmd = a.contentView.Update(msg)
		return a, cmd

	case messages.ItemLoaded:
		a.itemView, cmd = a.itemView.Update(msg)
		return a, cmd

	case messages.DashboardLoaded:
		if msg.Err == nil && msg.Stats != nil {
			a.menuView.SetQueueSize(msg.Stats.ProcessingQueueSize)
		}
		a.dashboardView, cmd = a.dashboardView.Update(msg)
		return a, cmd

	case messages.PendingProcessed:
		a.dashboardView, cmd = a.dashboardView.Update(msg)
		return a, cmd

	case messages.SettingsLoaded, messages.SettingsSaved:
		a.settingsView, cmd = a.settingsView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, a.forward(msg)

	case messages.Quit:
		return a, tea.Quit
	}

	return a, a.forward(msg)
}

// forward hands msg to the active view.
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
	case messages.ViewContent:
		a.contentView, cmd = a.contentView.Update(msg)
	case messages.ViewItem:
		a.itemView, cmd = a.itemView.Update(msg)
	case messages.ViewDashboard:
		a.dashboardView, cmd = a.dashboardView.Update(msg)
	case messages.ViewSettings:
		a.settingsView, cmd = a.settingsView.Update(msg)
	case messages.ViewHelp:
	}
	return cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewContent:
		return a.contentView.View()
	case messages.ViewItem:
		return a.itemView.View()
	case messages.ViewDashboard:
		return a.dashboardView.View()
	case messages.ViewSettings:
		return a.settingsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.menuView.View()
	}
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return `Help

Navigation:
  esc         Back
  ctrl+c      Quit

Menu:
  j/k, ↑/↓    Navigate options
  enter       Select option
  q           Quit

Search:
  (type)      Enter search query
  tab         Cycle kind filter
  enter       Submit search, open result
  n, /        New search

Content:
  tab         Switch files / texts
  enter       Open item
  p           Process item now
  x           Reset item to pending
  r           Reload

Dashboard:
  p           Process pending queue
  enter       Open queued item
  r           Refresh

Settings:
  enter       Edit, then save

[esc] back to menu`
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Query returns the current search query.
func (a *App) Query() string {
	return a.searchView.Query()
}

// Results returns the current search results.
func (a *App) Results() []domain.SearchResult {
	return a.searchView.Results()
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on the app and every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
	a.contentView.SetDimensions(width, height)
	a.itemView.SetDimensions(width, height)
	a.dashboardView.SetDimensions(width, height)
	a.settingsView.SetDimensions(width, height)
}
