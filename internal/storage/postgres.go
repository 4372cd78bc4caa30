package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const candidateColumns = `id, name, email, job_position, COALESCE(job_id, ''), medical_exam_date, documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (domain.Candidate, error) {
	var c domain.Candidate
	var examDate sql.NullString
	var docs []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.JobPosition, &c.JobID, &examDate, &docs); err != nil {
		return domain.Candidate{}, err
	}
	if examDate.Valid {
		d := examDate.String
		c.MedicalExamDate = &d
	}
	if err := json.Unmarshal(docs, &c.Documents); err != nil {
		return domain.Candidate{}, fmt.Errorf("decode documents of %s: %w", c.ID, err)
	}
	return c, nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context) ([]domain.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM candidates
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	return c, err
}

// UpdateCandidate locks the candidate row, applies fn and writes the result
// back in the same transaction.
func (s *PostgresStore) UpdateCandidate(ctx context.Context, id string, fn func(*domain.Candidate) error) (domain.Candidate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Candidate{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1 FOR UPDATE`, id)
	current, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	if err != nil {
		return domain.Candidate{}, err
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return current, err
	}

	docs, err := json.Marshal(next.Documents)
	if err != nil {
		return domain.Candidate{}, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE candidates
		SET medical_exam_date = $2,
		    documents = $3::jsonb,
		    updated_at = NOW()
		WHERE id = $1
	`, id, next.MedicalExamDate, string(docs))
	if err != nil {
		return domain.Candidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Candidate{}, err
	}
	return next, nil
}

func (s *PostgresStore) ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error) {
	keys := make([]string, 0, len(emails))
	for _, e := range emails {
		keys = append(keys, domain.NormalizeEmail(e))
	}
	rows, err := s.db.QueryContext(ctx, `SELECT email_key FROM candidates WHERE email_key = ANY($1)`, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out[key] = true
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertCandidates(ctx context.Context, cands []domain.Candidate) ([]domain.Candidate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	inserted := make([]domain.Candidate, 0, len(cands))
	for _, c := range cands {
		docs, err := json.Marshal(c.Documents)
		if err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO candidates (id, name, email, email_key, job_position, job_id, medical_exam_date, documents)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8::jsonb)
			ON CONFLICT DO NOTHING
		`, c.ID, c.Name, c.Email, domain.NormalizeEmail(c.Email), c.JobPosition, c.JobID, c.MedicalExamDate, string(docs))
		if err != nil {
			return nil, fmt.Errorf("insert candidate %s: %w", c.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, c)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	detail := []byte("{}")
	if len(entry.Detail) > 0 {
		b, err := json.Marshal(entry.Detail)
		if err != nil {
			return err
		}
		detail = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (candidate_id, document_id, action, from_status, to_status, detail, created_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6::jsonb, $7)
	`, entry.CandidateID, entry.DocumentID, entry.Action, string(entry.From), string(entry.To), string(detail), entry.At)
	return err
}

func (s *PostgresStore) ListAudit(ctx context.Context, candidateID string) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate_id, COALESCE(document_id, ''), action, COALESCE(from_status, ''), COALESCE(to_status, ''), detail, created_at
		FROM audit_log
		WHERE candidate_id = $1
		ORDER BY id ASC
	`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		var from, to string
		var detail []byte
		if err := rows.Scan(&e.CandidateID, &e.DocumentID, &e.Action, &from, &to, &detail, &e.At); err != nil {
			return nil, err
		}
		e.From = domain.DocumentStatus(from)
		e.To = domain.DocumentStatus(to)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, err
			}
		}
		if len(e.Detail) == 0 {
			e.Detail = nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountCandidates(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidates`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return count, nil
}
