// Package tui provides an interactive terminal dashboard for kbase.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search ranks stored chunks against a query.
	Search driving.SearchService

	// Content lists, reads and resets content items.
	Content driving.ContentService

	// Dashboard provides queue and corpus figures.
	Dashboard driving.DashboardService

	// Pipeline processes pending items. Optional; without it the
	// process actions report that processing is unavailable.
	Pipeline driving.Pipeline

	// Settings manages application settings. Optional.
	Settings driving.SettingsService
}

// NewPorts creates a new Ports aggregate with the required services.
func NewPorts(
	search driving.SearchService,
	content driving.ContentService,
	dashboard driving.DashboardService,
) *Ports {
	return &Ports{
		Search:    search,
		Content:   content,
		Dashboard: dashboard,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Content == nil {
		return ErrMissingContentService
	}
	if p.Dashboard == nil {
		return ErrMissingDashboardService
	}
	return nil
}
