package scan

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nickbanetti/vbs/internal/vision"
)

// InMemoryRepository backs handler and worker tests.
type InMemoryRepository struct {
	mu     sync.Mutex
	scans  map[int]*Scan
	nextID int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		scans:  make(map[int]*Scan),
		nextID: 1,
	}
}

func (r *InMemoryRepository) Create(
	ctx context.Context,
	userID string,
	objectKey string,
	filename string,
	model string,
) (int, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	now := time.Now()
	r.scans[id] = &Scan{
		ID:        id,
		UserID:    userID,
		ObjectKey: objectKey,
		Filename:  filename,
		Model:     model,
		Status:    StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return id, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id int) (*Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scans[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string) ([]Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Scan
	for _, s := range r.scans {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) ListFailed(ctx context.Context) ([]Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Scan
	for _, s := range r.scans {
		if s.Status == StatusFailed {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) FetchPending(ctx context.Context) (*Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *Scan
	for _, s := range r.scans {
		if s.Status != StatusUploaded {
			continue
		}
		if oldest == nil || s.ID < oldest.ID {
			oldest = s
		}
	}
	if oldest == nil {
		return nil, nil
	}
	copied := *oldest
	return &copied, nil
}

func (r *InMemoryRepository) UpdateStatus(
	ctx context.Context,
	id int,
	status string,
	reason *string,
) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scans[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.FailureReason = reason
	s.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) SaveResult(
	ctx context.Context,
	id int,
	structure *vision.StructureResult,
	result *vision.ExtractionResult,
	warnings []string,
) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scans[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = StatusDone
	s.FailureReason = nil
	s.Structure = structure
	s.Result = result
	s.Warnings = warnings
	s.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) Retry(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scans[id]
	if !ok {
		return ErrNotFound
	}
	if s.Status != StatusFailed {
		return errors.New("only failed scans can be retried")
	}
	s.Status = StatusUploaded
	s.FailureReason = nil
	s.Structure = nil
	s.Result = nil
	s.Warnings = nil
	s.UpdatedAt = time.Now()
	return nil
}
