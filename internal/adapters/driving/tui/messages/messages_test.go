package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestViewType_String(t *testing.T) {
	tests := []struct {
		view     ViewType
		expected string
	}{
		{ViewMenu, "menu"},
		{ViewSearch, "search"},
		{ViewContent, "content"},
		{ViewItem, "item"},
		{ViewDashboard, "dashboard"},
		{ViewSettings, "settings"},
		{ViewHelp, "help"},
		{ViewType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.view.String())
		})
	}
}

func TestViewType_DistinctValues(t *testing.T) {
	views := []ViewType{ViewMenu, ViewSearch, ViewContent, ViewItem, ViewDashboard, ViewSettings, ViewHelp}
	seen := make(map[ViewType]bool)
	for _, v := range views {
		assert.False(t, seen[v], "duplicate view value %d", v)
		seen[v] = true
	}
}

func TestItemSelected_CarriesReturnView(t *testing.T) {
	msg := ItemSelected{Ref: domain.TextRef(4), Back: ViewSearch}

	assert.Equal(t, "text:4", msg.Ref.String())
	assert.Equal(t, ViewSearch, msg.Back)
}

func TestErrorOccurred(t *testing.T) {
	err := errors.New("boom")
	msg := ErrorOccurred{Err: err}
	assert.ErrorIs(t, msg.Err, err)
}
