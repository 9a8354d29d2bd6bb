package attempts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const attemptColumns = `id, subject_id, position_id, job_title, job_description, resume_key, resume_text,
       questions, status, question_count, score, feedback, verdict, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new attempt with an empty transcript.
func (r *PGRepo) Create(ctx context.Context, attempt Attempt) error {
	const query = `
INSERT INTO attempts (
	id, subject_id, position_id, job_title, job_description, resume_key, resume_text,
	questions, status, question_count, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)`
	questions, err := marshalQuestions(attempt.Questions)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		attempt.ID,
		attempt.SubjectID,
		attempt.PositionID,
		attempt.JobTitle,
		attempt.JobDescription,
		nullString(attempt.ResumeKey),
		nullString(attempt.ResumeText),
		questions,
		attempt.Status,
		Timestamp(attempt.CreatedAt),
	)
	return err
}

// GetByID returns an attempt and its turns.
func (r *PGRepo) GetByID(ctx context.Context, attemptID string) (Attempt, error) {
	if _, err := uuid.Parse(attemptID); err != nil {
		return Attempt{}, ErrNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, attemptID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}

	turns, err := r.listTurns(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	a.Turns = turns
	return a, nil
}

// SubjectContext returns the job and résumé data stored on the attempt.
func (r *PGRepo) SubjectContext(ctx context.Context, attemptID string) (SubjectContext, error) {
	if _, err := uuid.Parse(attemptID); err != nil {
		return SubjectContext{}, ErrNotFound
	}
	const query = `
SELECT job_title, job_description, resume_key, resume_text, questions
FROM attempts
WHERE id = $1`
	var sc SubjectContext
	var resumeKey, resumeText sql.NullString
	var questions []byte
	err := r.DB.QueryRowContext(ctx, query, attemptID).Scan(&sc.JobTitle, &sc.JobDescription, &resumeKey, &resumeText, &questions)
	if errors.Is(err, sql.ErrNoRows) {
		return SubjectContext{}, ErrNotFound
	}
	if err != nil {
		return SubjectContext{}, err
	}
	sc.ResumeKey = resumeKey.String
	sc.ResumeText = resumeText.String
	if sc.Questions, err = unmarshalQuestions(questions); err != nil {
		return SubjectContext{}, err
	}
	return sc, nil
}

// AppendTurn inserts the next turn under a row lock on the attempt.
func (r *PGRepo) AppendTurn(ctx context.Context, attemptID string, turn Turn) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status, count, err := lockAttempt(ctx, tx, attemptID)
	if err != nil {
		return err
	}
	if status != StatusInProgress {
		return ErrNotOpen
	}
	if turn.Index != count+1 {
		return ErrOutOfOrder
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO attempt_turns (attempt_id, turn_index, question, asked_at)
VALUES ($1, $2, $3, $4)`, attemptID, turn.Index, turn.Question, Timestamp(turn.AskedAt)); err != nil {
		return fmt.Errorf("insert turn %d: %w", turn.Index, err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE attempts SET question_count = $2, updated_at = now()
WHERE id = $1`, attemptID, turn.Index); err != nil {
		return fmt.Errorf("update question count: %w", err)
	}
	return tx.Commit()
}

// RecordAnswer closes an open turn. answered_at is clamped to asked_at.
func (r *PGRepo) RecordAnswer(ctx context.Context, attemptID string, index int, answer *string, answeredAt time.Time, timedOut bool) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status, _, err := lockAttempt(ctx, tx, attemptID)
	if err != nil {
		return err
	}
	if status != StatusInProgress {
		return ErrNotOpen
	}

	var answerArg any
	if answer != nil {
		answerArg = *answer
	}
	res, err := tx.ExecContext(ctx, `
UPDATE attempt_turns
SET answer = $3, answered_at = GREATEST($4, asked_at), timed_out = $5
WHERE attempt_id = $1 AND turn_index = $2 AND answered_at IS NULL`,
		attemptID, index, answerArg, Timestamp(answeredAt), timedOut)
	if err != nil {
		return fmt.Errorf("record answer %d: %w", index, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrOutOfOrder
	}
	return tx.Commit()
}

// Finalize stores the evaluation and marks the attempt completed.
func (r *PGRepo) Finalize(ctx context.Context, attemptID string, result Result) error {
	if _, err := uuid.Parse(attemptID); err != nil {
		return ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE attempts
SET score = $2, feedback = $3, verdict = $4, status = $5, completed_at = $6, updated_at = now()
WHERE id = $1`,
		attemptID, result.Score, result.Feedback, result.Verdict, StatusCompleted, Timestamp(result.CompletedAt))
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Abandon marks an in-progress attempt abandoned.
func (r *PGRepo) Abandon(ctx context.Context, attemptID string) error {
	if _, err := uuid.Parse(attemptID); err != nil {
		return ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE attempts SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3`, attemptID, StatusAbandoned, StatusInProgress)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var exists bool
	err = r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM attempts WHERE id = $1)`, attemptID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// ListBySubject returns attempts for a subject, newest first. Turns are not loaded.
func (r *PGRepo) ListBySubject(ctx context.Context, subjectID string, limit, offset int) ([]Attempt, error) {
	if offset < 0 {
		offset = 0
	}
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+attemptColumns+`
FROM attempts
WHERE subject_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`, subjectID, limitArg, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PGRepo) listTurns(ctx context.Context, attemptID string) ([]Turn, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT turn_index, question, answer, asked_at, answered_at, timed_out
FROM attempt_turns
WHERE attempt_id = $1
ORDER BY turn_index ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		var answer sql.NullString
		var answeredAt sql.NullTime
		if err := rows.Scan(&t.Index, &t.Question, &answer, &t.AskedAt, &answeredAt, &t.TimedOut); err != nil {
			return nil, err
		}
		t.AskedAt = t.AskedAt.UTC()
		if answer.Valid {
			v := answer.String
			t.Answer = &v
		}
		if answeredAt.Valid {
			v := answeredAt.Time.UTC()
			t.AnsweredAt = &v
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func lockAttempt(ctx context.Context, tx *sql.Tx, attemptID string) (string, int, error) {
	if _, err := uuid.Parse(attemptID); err != nil {
		return "", 0, ErrNotFound
	}
	var status string
	var count int
	err := tx.QueryRowContext(ctx, `SELECT status, question_count FROM attempts WHERE id = $1 FOR UPDATE`, attemptID).Scan(&status, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	return status, count, err
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var resumeKey, resumeText, feedback, verdict sql.NullString
	var questions []byte
	var score sql.NullFloat64
	var completedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.SubjectID,
		&a.PositionID,
		&a.JobTitle,
		&a.JobDescription,
		&resumeKey,
		&resumeText,
		&questions,
		&a.Status,
		&a.QuestionCount,
		&score,
		&feedback,
		&verdict,
		&a.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return Attempt{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.ResumeKey = resumeKey.String
	a.ResumeText = resumeText.String
	if a.Questions, err = unmarshalQuestions(questions); err != nil {
		return Attempt{}, err
	}
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	if feedback.Valid {
		v := feedback.String
		a.Feedback = &v
	}
	if verdict.Valid {
		v := verdict.String
		a.Verdict = &v
	}
	if completedAt.Valid {
		v := completedAt.Time.UTC()
		a.CompletedAt = &v
	}
	a.Turns = []Turn{}
	return a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalQuestions(questions []string) (any, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(questions)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func unmarshalQuestions(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
