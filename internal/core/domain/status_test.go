package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingStatus_CanTransitionTo(t *testing.T) {
	allowed := map[[2]ProcessingStatus]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusPending, StatusFailed}:       true,
		{StatusProcessing, StatusCompleted}: true,
		{StatusProcessing, StatusFailed}:    true,
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				assert.Equal(t, allowed[[2]ProcessingStatus{from, to}], from.CanTransitionTo(to))
			})
		}
	}
}

func TestProcessingStatus_TerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []ProcessingStatus{StatusCompleted, StatusFailed} {
		assert.True(t, s.IsTerminal())
		assert.False(t, s.IsQueued())
		for _, to := range AllStatuses() {
			assert.False(t, s.CanTransitionTo(to))
		}
	}
}

func TestProcessingStatus_IsQueued(t *testing.T) {
	assert.True(t, StatusPending.IsQueued())
	assert.True(t, StatusProcessing.IsQueued())
	assert.Equal(t, []ProcessingStatus{StatusPending, StatusProcessing}, QueuedStatuses())
}

func TestParseProcessingStatus(t *testing.T) {
	s, err := ParseProcessingStatus("completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s)

	_, err = ParseProcessingStatus("done")
	assert.ErrorIs(t, err, ErrValidation)
}
