// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// SearchCompleted carries search results back to the model.
type SearchCompleted struct {
	Results []domain.SearchResult
	Err     error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewSearch is the search input and results view.
	ViewSearch
	// ViewContent lists content items of one kind.
	ViewContent
	// ViewItem shows a single content item.
	ViewItem
	// ViewDashboard shows corpus totals and the processing queue.
	ViewDashboard
	// ViewSettings is the settings configuration view.
	ViewSettings
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewSearch:
		return "search"
	case ViewContent:
		return "content"
	case ViewItem:
		return "item"
	case ViewDashboard:
		return "dashboard"
	case ViewSettings:
		return "settings"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// ContentLoaded carries the items of one kind.
type ContentLoaded struct {
	Kind  domain.ContentKind
	Items []domain.ContentItem
	Err   error
}

// ItemSelected asks the app to open an item.
// Back is the view to return to.
type ItemSelected struct {
	Ref  domain.ContentRef
	Back ViewType
}

// ItemLoaded carries a single item.
type ItemLoaded struct {
	Item *domain.ContentItem
	Err  error
}

// ItemReset signals an item was put back to pending.
type ItemReset struct {
	Ref domain.ContentRef
	Err error
}

// ItemProcessed carries the outcome of processing one item.
type ItemProcessed struct {
	Ref     domain.ContentRef
	Outcome *driving.ProcessOutcome
	Err     error
}

// DashboardLoaded carries corpus totals and the processing queue.
type DashboardLoaded struct {
	Stats *domain.DashboardStats
	Queue []domain.QueueItem
	Err   error
}

// PendingProcessed carries the report of a queue run.
type PendingProcessed struct {
	Report *driving.ProcessReport
	Err    error
}

// SettingsLoaded carries the application settings.
type SettingsLoaded struct {
	Settings *domain.AppSettings
	Err      error
}

// SettingsSaved signals a setting was written.
type SettingsSaved struct {
	Key string
	Err error
}
