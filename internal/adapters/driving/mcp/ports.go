package mcp

import (
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server uses.
type Ports struct {
	// Search provides similarity search.
	Search driving.SearchService

	// Dashboard provides queue and corpus figures. Optional.
	Dashboard driving.DashboardService

	// Content lists and reads content items. Optional.
	Content driving.ContentService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
