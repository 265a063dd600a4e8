package scan

import (
	"time"

	"github.com/nickbanetti/vbs/internal/vision"
)

// Scan lifecycle statuses.
const (
	StatusUploaded  = "UPLOADED"
	StatusAnalyzing = "ANALYZING"
	StatusDone      = "DONE"
	StatusFailed    = "FAILED"
)

// Scan is one uploaded board photo and, once analyzed, its extracted
// structure and data. The user's API key is never stored on it.
type Scan struct {
	ID            int                      `json:"id"`
	UserID        string                   `json:"user_id"`
	ObjectKey     string                   `json:"object_key"`
	Filename      string                   `json:"filename"`
	Model         string                   `json:"model"`
	Status        string                   `json:"status"`
	FailureReason *string                  `json:"failure_reason,omitempty"`
	Structure     *vision.StructureResult  `json:"structure,omitempty"`
	Result        *vision.ExtractionResult `json:"result,omitempty"`
	Warnings      []string                 `json:"warnings,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}
