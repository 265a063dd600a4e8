package scan

import (
	"context"

	"github.com/nickbanetti/vbs/internal/vision"
)

// Repository defines all database operations for board scans
type Repository interface {

	// Create inserts a new scan in UPLOADED state
	Create(
		ctx context.Context,
		userID string,
		objectKey string,
		filename string,
		model string,
	) (int, error)

	GetByID(ctx context.Context, id int) (*Scan, error)

	ListByUser(ctx context.Context, userID string) ([]Scan, error)

	// ListFailed feeds the admin view of scans needing attention
	ListFailed(ctx context.Context) ([]Scan, error)

	// FetchPending returns the oldest UPLOADED scan, or nil when the
	// queue is empty
	FetchPending(ctx context.Context) (*Scan, error)

	UpdateStatus(
		ctx context.Context,
		id int,
		status string,
		reason *string,
	) error

	// SaveResult atomically marks the scan DONE and stores both stage
	// outputs plus any mismatch warnings
	SaveResult(
		ctx context.Context,
		id int,
		structure *vision.StructureResult,
		result *vision.ExtractionResult,
		warnings []string,
	) error

	// Retry moves a FAILED scan back to UPLOADED
	Retry(ctx context.Context, id int) error
}
