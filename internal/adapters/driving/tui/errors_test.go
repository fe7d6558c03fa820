package tui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_AreDistinct(t *testing.T) {
	errs := []error{
		ErrMissingSearchService,
		ErrMissingContentService,
		ErrMissingDashboardService,
	}

	for i, a := range errs {
		for j, b := range errs {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestErrors_Messages(t *testing.T) {
	assert.Equal(t, "tui: search service is required", ErrMissingSearchService.Error())
	assert.Equal(t, "tui: content service is required", ErrMissingContentService.Error())
	assert.Equal(t, "tui: dashboard service is required", ErrMissingDashboardService.Error())
}
