package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBytesToMB(t *testing.T) {
	assert.Equal(t, 0.0, BytesToMB(0))
	assert.Equal(t, 1.0, BytesToMB(1024*1024))
	assert.Equal(t, 1.5, BytesToMB(1024*1024*3/2))
	assert.Equal(t, 0.01, BytesToMB(10*1024))
}

func TestDayOf_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2025, 3, 2, 5, 0, 0, 0, loc)

	assert.Equal(t, "2025-03-01", DayOf(ts))
}

func TestDefaultDashboardOptions(t *testing.T) {
	opts := DefaultDashboardOptions()
	assert.Equal(t, 24*time.Hour, opts.RecentWindow)
	assert.Equal(t, 7, opts.Days)
}
