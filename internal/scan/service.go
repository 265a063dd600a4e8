package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nickbanetti/vbs/internal/imageprep"
	"github.com/nickbanetti/vbs/internal/vision"
)

// Storage is the object-store contract the service depends on.
type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	PublicURL(key string) string
}

// ClientFactory builds a model client per run so the credential lives
// only for that run.
type ClientFactory func(apiKey, model string) vision.Client

type Service struct {
	repo      Repository
	storage   Storage
	newClient ClientFactory
	apiKey    string // worker credential, read once from config
}

func NewService(repo Repository, storage Storage, newClient ClientFactory, apiKey string) *Service {
	return &Service{
		repo:      repo,
		storage:   storage,
		newClient: newClient,
		apiKey:    apiKey,
	}
}

// ValidateFileExtension accepts only the two image formats boards are
// photographed in.
func ValidateFileExtension(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
		return nil
	}
	return errors.New("only .jpg, .jpeg and .png files are accepted")
}

// --------------------------------------------------
// Upload board photo
// --------------------------------------------------
func (s *Service) Upload(
	ctx context.Context,
	userID string,
	data []byte,
	filename string,
	model string,
) (int, string, error) {

	if err := ValidateFileExtension(filename); err != nil {
		return 0, "", err
	}

	if model == "" {
		model = vision.DefaultModel
	}
	if !vision.ValidModel(model) {
		return 0, "", fmt.Errorf("unknown model %q", model)
	}

	prepped, contentType, err := imageprep.Prepare(data)
	if err != nil {
		return 0, "", err
	}

	key := fmt.Sprintf(
		"boards/%s/%s%s",
		userID,
		uuid.New().String(),
		strings.ToLower(filepath.Ext(filename)),
	)

	if _, err := s.storage.Upload(ctx, key, bytes.NewReader(prepped), contentType); err != nil {
		return 0, "", err
	}

	id, err := s.repo.Create(ctx, userID, key, filename, model)
	if err != nil {
		return 0, "", err
	}

	return id, key, nil
}

// --------------------------------------------------
// Synchronous analysis (no persistence)
// --------------------------------------------------

// AnalysisOutcome is the terminal output of one analysis run.
type AnalysisOutcome struct {
	Structure *vision.StructureResult
	Result    *vision.ExtractionResult
	Warnings  []string
}

// AnalyzeNow runs the two-stage pipeline inline against the supplied
// credential and returns the result without storing anything.
func (s *Service) AnalyzeNow(
	ctx context.Context,
	apiKey string,
	model string,
	data []byte,
	progress vision.ProgressFunc,
) (*AnalysisOutcome, error) {

	prepped, contentType, err := imageprep.Prepare(data)
	if err != nil {
		return nil, err
	}

	pipeline := vision.NewPipeline(s.newClient(apiKey, model))
	structure, result, err := pipeline.Analyze(ctx, prepped, contentType, progress)
	if err != nil {
		return nil, err
	}

	return &AnalysisOutcome{
		Structure: structure,
		Result:    result,
		Warnings:  warningsFor(structure, result),
	}, nil
}

// --------------------------------------------------
// Background analysis worker
// --------------------------------------------------

// ProcessOne picks ONE pending scan and analyzes it safely. Failures
// mark the scan FAILED and never block the worker.
func (s *Service) ProcessOne(ctx context.Context) error {
	pending, err := s.repo.FetchPending(ctx)
	if err != nil || pending == nil {
		// No pending scans is NOT an error
		return nil
	}

	id := pending.ID
	_ = s.repo.UpdateStatus(ctx, id, StatusAnalyzing, nil)

	data, err := s.fetchImage(s.storage.PublicURL(pending.ObjectKey))
	if err != nil {
		return s.markFailed(ctx, id, err)
	}

	log.Printf("SCAN_FETCHED id=%d bytes=%d model=%s", id, len(data), pending.Model)

	progress := func(stage int, message string) {
		log.Printf("SCAN_PROGRESS id=%d stage=%d %s", id, stage, message)
	}

	outcome, err := s.AnalyzeNow(ctx, s.apiKey, pending.Model, data, progress)
	if err != nil {
		return s.markFailed(ctx, id, err)
	}

	for _, w := range outcome.Warnings {
		log.Printf("SCAN_MISMATCH id=%d %s", id, w)
	}

	if err := s.repo.SaveResult(ctx, id, outcome.Structure, outcome.Result, outcome.Warnings); err != nil {
		return s.markFailed(ctx, id, err)
	}

	log.Printf("SCAN_DONE id=%d board_type=%s votes=%d notes=%d",
		id,
		outcome.Structure.BoardType,
		len(outcome.Result.VotingData),
		len(outcome.Result.Notes),
	)
	return nil
}

func (s *Service) markFailed(ctx context.Context, id int, cause error) error {
	msg := cause.Error()
	log.Printf("SCAN_FAILED id=%d reason=%s", id, msg)
	_ = s.repo.UpdateStatus(ctx, id, StatusFailed, &msg)
	return nil // do NOT block the worker
}

func (s *Service) fetchImage(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// RunAnalysisWorker polls for pending scans until ctx is cancelled.
func (s *Service) RunAnalysisWorker(ctx context.Context, interval time.Duration) {
	log.Println("analysis worker started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("analysis worker stopped")
			return
		case <-ticker.C:
			if err := s.ProcessOne(ctx); err != nil {
				log.Printf("SCAN_WORKER_ERROR %v", err)
			}
		}
	}
}

// --------------------------------------------------
// Queries / retry
// --------------------------------------------------

var ErrForbidden = errors.New("scan belongs to another user")

// GetOwned returns the scan if it belongs to userID (admins pass
// admin=true to bypass).
func (s *Service) GetOwned(ctx context.Context, id int, userID string, admin bool) (*Scan, error) {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && sc.UserID != userID {
		return nil, ErrForbidden
	}
	return sc, nil
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]Scan, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListFailed(ctx context.Context) ([]Scan, error) {
	return s.repo.ListFailed(ctx)
}

func (s *Service) Retry(ctx context.Context, id int, userID string, admin bool) error {
	if _, err := s.GetOwned(ctx, id, userID, admin); err != nil {
		return err
	}
	return s.repo.Retry(ctx, id)
}

// warningsFor flags the declared-type/returned-data mismatch. Both
// sections are still rendered; nothing is guessed at or dropped.
func warningsFor(structure *vision.StructureResult, result *vision.ExtractionResult) []string {
	var warnings []string

	if structure.BoardType == vision.BoardNotes && len(result.VotingData) > 0 {
		warnings = append(warnings,
			"board classified as notes but voting data was returned; rendering it anyway")
	}
	if structure.BoardType == vision.BoardVoting && len(result.Notes) > 0 {
		warnings = append(warnings,
			"board classified as voting but sticky notes were returned; rendering them anyway")
	}

	return warnings
}
