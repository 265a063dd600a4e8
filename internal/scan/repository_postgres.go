package scan

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickbanetti/vbs/internal/vision"
)

var ErrNotFound = errors.New("scan not found")

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(
	ctx context.Context,
	userID string,
	objectKey string,
	filename string,
	model string,
) (int, error) {

	var id int
	err := r.db.QueryRow(ctx, `
		INSERT INTO board_scans (
			user_id,
			object_key,
			original_filename,
			model,
			status,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, 'UPLOADED', now(), now())
		RETURNING id
	`, userID, objectKey, filename, model).Scan(&id)

	return id, err
}

const scanColumns = `
	id, user_id, object_key, original_filename, model,
	status, failure_reason, structure, result, warnings,
	created_at, updated_at
`

func scanRow(row pgx.Row) (*Scan, error) {
	var (
		s             Scan
		structureJSON []byte
		resultJSON    []byte
	)

	err := row.Scan(
		&s.ID, &s.UserID, &s.ObjectKey, &s.Filename, &s.Model,
		&s.Status, &s.FailureReason, &structureJSON, &resultJSON, &s.Warnings,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(structureJSON) > 0 {
		s.Structure = &vision.StructureResult{}
		if err := json.Unmarshal(structureJSON, s.Structure); err != nil {
			return nil, err
		}
	}
	if len(resultJSON) > 0 {
		s.Result = &vision.ExtractionResult{}
		if err := json.Unmarshal(resultJSON, s.Result); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (*Scan, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+scanColumns+`
		FROM board_scans
		WHERE id = $1
	`, id)

	return scanRow(row)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Scan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+scanColumns+`
		FROM board_scans
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectScans(rows)
}

func (r *PostgresRepository) ListFailed(ctx context.Context) ([]Scan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+scanColumns+`
		FROM board_scans
		WHERE status = 'FAILED'
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectScans(rows)
}

func collectScans(rows pgx.Rows) ([]Scan, error) {
	var scans []Scan
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *s)
	}
	return scans, rows.Err()
}

func (r *PostgresRepository) FetchPending(ctx context.Context) (*Scan, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+scanColumns+`
		FROM board_scans
		WHERE status = 'UPLOADED'
		ORDER BY created_at ASC
		LIMIT 1
	`)

	s, err := scanRow(row)
	if errors.Is(err, ErrNotFound) {
		// Empty queue is not an error
		return nil, nil
	}
	return s, err
}

func (r *PostgresRepository) UpdateStatus(
	ctx context.Context,
	id int,
	status string,
	reason *string,
) error {

	_, err := r.db.Exec(ctx, `
		UPDATE board_scans
		SET status = $1,
		    failure_reason = $2,
		    updated_at = now()
		WHERE id = $3
	`, status, reason, id)

	return err
}

func (r *PostgresRepository) SaveResult(
	ctx context.Context,
	id int,
	structure *vision.StructureResult,
	result *vision.ExtractionResult,
	warnings []string,
) error {

	structureJSON, err := json.Marshal(structure)
	if err != nil {
		return err
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		UPDATE board_scans
		SET status = 'DONE',
		    failure_reason = NULL,
		    structure = $1,
		    result = $2,
		    warnings = $3,
		    updated_at = now()
		WHERE id = $4
	`, structureJSON, resultJSON, warnings, id)

	return err
}

func (r *PostgresRepository) Retry(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE board_scans
		SET status = 'UPLOADED',
		    failure_reason = NULL,
		    structure = NULL,
		    result = NULL,
		    warnings = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = 'FAILED'
	`, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return errors.New("only failed scans can be retried")
	}
	return nil
}
