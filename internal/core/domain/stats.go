package domain

import (
	"math"
	"time"
)

// DateLayout is the calendar-day format used in usage series.
const DateLayout = "2006-01-02"

// bytesPerMB converts bytes to megabytes.
const bytesPerMB = 1024 * 1024

// QueueItem is a summary of a content item awaiting or under processing.
type QueueItem struct {
	ID        int64            `json:"id"`
	Kind      ContentKind      `json:"type"`
	Name      string           `json:"name"`
	Status    ProcessingStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// Ref returns the queue item's content reference.
func (q QueueItem) Ref() ContentRef {
	return ContentRef{Kind: q.Kind, ID: q.ID}
}

// DailyUsage is one bucket of the dashboard's daily series.
type DailyUsage struct {
	Date      string  `json:"date"`
	Uploads   int     `json:"uploads"`
	StorageMB float64 `json:"storage_mb"`
}

// DashboardStats aggregates the corpus for the dashboard.
type DashboardStats struct {
	TotalFiles          int          `json:"total_files"`
	TotalTextEntries    int          `json:"total_text_entries"`
	TotalEmbeddings     int          `json:"total_embeddings"`
	TotalStorageMB      float64      `json:"total_storage_mb"`
	ProcessingQueueSize int          `json:"processing_queue_size"`
	RecentUploads       int          `json:"recent_uploads"`
	DailyUsage          []DailyUsage `json:"daily_usage"`
}

// UsageStat is a persisted daily rollup.
type UsageStat struct {
	Date              string    `json:"date"`
	FilesUploaded     int       `json:"total_files_uploaded"`
	TextEntries       int       `json:"total_text_entries"`
	EmbeddingsCreated int       `json:"total_embeddings_created"`
	DataProcessedMB   float64   `json:"total_data_processed_mb"`
	StorageUsedMB     float64   `json:"storage_used_mb"`
	CreatedAt         time.Time `json:"created_at"`
}

// DashboardOptions configures the dashboard windows.
type DashboardOptions struct {
	// RecentWindow is the trailing window counted as recent uploads.
	RecentWindow time.Duration

	// Days is the number of UTC calendar days in the daily series, today included.
	Days int
}

// DefaultDashboardOptions returns a 24 hour recent window and a 7 day series.
func DefaultDashboardOptions() DashboardOptions {
	return DashboardOptions{
		RecentWindow: 24 * time.Hour,
		Days:         7,
	}
}

// BytesToMB converts bytes to megabytes rounded to two decimals.
func BytesToMB(bytes int64) float64 {
	return RoundMB(float64(bytes) / bytesPerMB)
}

// RoundMB rounds a megabyte figure to two decimals.
func RoundMB(mb float64) float64 {
	return math.Round(mb*100) / 100
}

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
