package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/condoplex/facegate/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EnrollmentRepository provides PostgreSQL-backed enrollment storage.
type EnrollmentRepository struct {
	pool *Pool
	dim  int
}

// NewEnrollmentRepository creates a repository validating embeddings against dim.
func NewEnrollmentRepository(pool *Pool, dim int) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool, dim: dim}
}

// nullVector scans a nullable pgvector column.
type nullVector struct {
	Vector pgvector.Vector
	Valid  bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.Valid = false
		return nil
	}
	n.Valid = true
	return n.Vector.Scan(src)
}

const enrollmentColumns = `identity_id, display_name, reference_photo, photo_fingerprint,
	       embedding, model, dim, confidence, created_at, updated_at`

// scanEnrollment scans a single row into an EnrollmentRecord.
func scanEnrollment(scanner interface{ Scan(...any) error }) (*database.EnrollmentRecord, error) {
	var r database.EnrollmentRecord
	var photo []byte
	var vec nullVector

	err := scanner.Scan(
		&r.IdentityID,
		&r.DisplayName,
		&photo,
		&r.PhotoFingerprint,
		&vec,
		&r.Model,
		&r.Dim,
		&r.Confidence,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}

	r.ReferencePhoto = photo
	if vec.Valid {
		r.Embedding = vec.Vector.Slice()
	}
	return &r, nil
}

// Get returns the full record including photo bytes.
func (r *EnrollmentRepository) Get(ctx context.Context, identityID string) (*database.EnrollmentRecord, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE identity_id = $1
	`

	rec, err := scanEnrollment(r.pool.QueryRow(ctx, query, identityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update atomically applies fn to the identity's record under a row lock.
// The record is read with SELECT FOR UPDATE so concurrent updates on the same
// identity serialize; a missing record starts zero-valued.
func (r *EnrollmentRepository) Update(
	ctx context.Context, identityID string, fn func(*database.EnrollmentRecord) error,
) (*database.EnrollmentRecord, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE identity_id = $1
		FOR UPDATE
	`

	working, err := scanEnrollment(tx.QueryRowContext(ctx, query, identityID))
	if errors.Is(err, sql.ErrNoRows) {
		working = &database.EnrollmentRecord{IdentityID: identityID, CreatedAt: time.Now()}
	} else if err != nil {
		return nil, err
	}

	if err := fn(working); err != nil {
		return nil, err
	}
	if err := database.ValidateEmbedding(working.Embedding, r.dim); err != nil {
		return nil, err
	}
	if err := database.CheckInvariant(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()

	var emb any
	if working.HasEmbedding() {
		emb = pgvector.NewVector(working.Embedding)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO enrollments (identity_id, display_name, reference_photo, photo_fingerprint,
		                         embedding, model, dim, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (identity_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			reference_photo = EXCLUDED.reference_photo,
			photo_fingerprint = EXCLUDED.photo_fingerprint,
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at
	`,
		working.IdentityID,
		working.DisplayName,
		working.ReferencePhoto,
		working.PhotoFingerprint,
		emb,
		working.Model,
		working.Dim,
		working.Confidence,
		working.CreatedAt,
		working.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment update: %w", err)
	}
	return working, nil
}

// SnapshotEmbedded returns all records holding an embedding, photo bytes omitted.
func (r *EnrollmentRepository) SnapshotEmbedded(ctx context.Context) ([]database.EnrollmentRecord, error) {
	query := `
		SELECT identity_id, display_name, NULL::bytea, photo_fingerprint,
		       embedding, model, dim, confidence, created_at, updated_at
		FROM enrollments
		WHERE embedding IS NOT NULL
		ORDER BY identity_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedded enrollments: %w", err)
	}
	defer rows.Close()

	return collectEnrollments(rows)
}

// List returns all records with photo bytes replaced by a presence marker.
func (r *EnrollmentRepository) List(ctx context.Context) ([]database.EnrollmentRecord, error) {
	query := `
		SELECT identity_id, display_name,
		       CASE WHEN reference_photo IS NOT NULL AND length(reference_photo) > 0
		            THEN '\x01'::bytea ELSE NULL END,
		       photo_fingerprint, embedding, model, dim, confidence, created_at, updated_at
		FROM enrollments
		ORDER BY identity_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	return collectEnrollments(rows)
}

// Count returns the total number of enrollment records.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enrollments").Scan(&count); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

func collectEnrollments(rows *sql.Rows) ([]database.EnrollmentRecord, error) {
	var records []database.EnrollmentRecord
	for rows.Next() {
		rec, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return records, nil
}

// Verify interface compliance.
var _ database.EnrollmentStore = (*EnrollmentRepository)(nil)
