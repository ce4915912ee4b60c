package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// ReportStore archives completed evaluations.
type ReportStore struct {
	db *DB
}

func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db}
}

// Save inserts or replaces the report for a session.
func (s *ReportStore) Save(ctx context.Context, r *models.Report) error {
	evalJSON, err := json.Marshal(r.Evaluation)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	transcriptJSON, err := json.Marshal(r.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			session_id, student_name, project_title, composite,
			evaluation, questions, answers, transcript, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			student_name = excluded.student_name,
			project_title = excluded.project_title,
			composite = excluded.composite,
			evaluation = excluded.evaluation,
			questions = excluded.questions,
			answers = excluded.answers,
			transcript = excluded.transcript,
			created_at = excluded.created_at
	`,
		r.SessionID, r.StudentName, r.ProjectTitle, r.Composite,
		string(evalJSON), r.Questions, r.Answers, string(transcriptJSON), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get fetches the report for a session.
func (s *ReportStore) Get(ctx context.Context, sessionID string) (*models.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, `
		SELECT session_id, student_name, project_title, composite,
			evaluation, questions, answers, transcript, created_at
		FROM reports WHERE session_id = ?
	`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", sessionID, models.ErrNotFound)
	}
	return r, err
}

// List returns the newest reports first. A non-positive limit returns all.
func (s *ReportStore) List(ctx context.Context, limit int) ([]*models.Report, error) {
	query := `
		SELECT session_id, student_name, project_title, composite,
			evaluation, questions, answers, transcript, created_at
		FROM reports ORDER BY created_at DESC, session_id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*models.Report, error) {
	var (
		r          models.Report
		evalJSON   string
		transcript sql.NullString
	)
	err := row.Scan(
		&r.SessionID, &r.StudentName, &r.ProjectTitle, &r.Composite,
		&evalJSON, &r.Questions, &r.Answers, &transcript, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(evalJSON), &r.Evaluation); err != nil {
		return nil, fmt.Errorf("decode evaluation for %s: %w", r.SessionID, err)
	}
	if transcript.Valid && transcript.String != "" {
		if err := json.Unmarshal([]byte(transcript.String), &r.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript for %s: %w", r.SessionID, err)
		}
	}
	return &r, nil
}
