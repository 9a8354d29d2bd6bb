package attempts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores attempts in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]*Attempt
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]*Attempt)}
}

// Create stores the attempt.
func (r *MemoryRepo) Create(ctx context.Context, attempt Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := clone(attempt)
	stored.Turns = nil
	stored.QuestionCount = 0
	stored.CreatedAt = Timestamp(stored.CreatedAt)
	r.byID[attempt.ID] = &stored
	return nil
}

// GetByID returns a copy of the attempt.
func (r *MemoryRepo) GetByID(ctx context.Context, attemptID string) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[attemptID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return clone(*a), nil
}

// SubjectContext returns the job and résumé data stored on the attempt.
func (r *MemoryRepo) SubjectContext(ctx context.Context, attemptID string) (SubjectContext, error) {
	a, err := r.GetByID(ctx, attemptID)
	if err != nil {
		return SubjectContext{}, err
	}
	return subjectContextOf(a), nil
}

// AppendTurn adds the next turn.
func (r *MemoryRepo) AppendTurn(ctx context.Context, attemptID string, turn Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != StatusInProgress {
		return ErrNotOpen
	}
	if turn.Index != a.QuestionCount+1 {
		return ErrOutOfOrder
	}
	turn.AskedAt = Timestamp(turn.AskedAt)
	turn.Answer = nil
	turn.AnsweredAt = nil
	turn.TimedOut = false
	a.Turns = append(a.Turns, turn)
	a.QuestionCount = len(a.Turns)
	return nil
}

// RecordAnswer closes a turn.
func (r *MemoryRepo) RecordAnswer(ctx context.Context, attemptID string, index int, answer *string, answeredAt time.Time, timedOut bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != StatusInProgress {
		return ErrNotOpen
	}
	if index < 1 || index > len(a.Turns) {
		return ErrOutOfOrder
	}
	t := &a.Turns[index-1]
	if t.Answered() {
		return ErrOutOfOrder
	}
	at := Timestamp(answeredAt)
	if at.Before(t.AskedAt) {
		at = t.AskedAt
	}
	if answer != nil {
		v := *answer
		t.Answer = &v
	}
	t.AnsweredAt = &at
	t.TimedOut = timedOut
	return nil
}

// Finalize stores the evaluation and marks the attempt completed.
func (r *MemoryRepo) Finalize(ctx context.Context, attemptID string, result Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[attemptID]
	if !ok {
		return ErrNotFound
	}
	score := result.Score
	feedback := result.Feedback
	verdict := result.Verdict
	completedAt := Timestamp(result.CompletedAt)
	a.Score = &score
	a.Feedback = &feedback
	a.Verdict = &verdict
	a.CompletedAt = &completedAt
	a.Status = StatusCompleted
	return nil
}

// Abandon marks an in-progress attempt abandoned.
func (r *MemoryRepo) Abandon(ctx context.Context, attemptID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.Status == StatusInProgress {
		a.Status = StatusAbandoned
	}
	return nil
}

// ListBySubject returns attempts for a subject, newest first, with limit/offset.
func (r *MemoryRepo) ListBySubject(ctx context.Context, subjectID string, limit, offset int) ([]Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	var out []Attempt
	for _, a := range r.byID {
		if a.SubjectID == subjectID {
			out = append(out, clone(*a))
		}
	}
	r.mu.RUnlock()

	if offset >= len(out) {
		return []Attempt{}, nil
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func clone(a Attempt) Attempt {
	out := a
	out.Questions = append([]string(nil), a.Questions...)
	out.Turns = make([]Turn, len(a.Turns))
	for i, t := range a.Turns {
		c := t
		if t.Answer != nil {
			v := *t.Answer
			c.Answer = &v
		}
		if t.AnsweredAt != nil {
			v := *t.AnsweredAt
			c.AnsweredAt = &v
		}
		out.Turns[i] = c
	}
	if a.Score != nil {
		v := *a.Score
		out.Score = &v
	}
	if a.Feedback != nil {
		v := *a.Feedback
		out.Feedback = &v
	}
	if a.Verdict != nil {
		v := *a.Verdict
		out.Verdict = &v
	}
	if a.CompletedAt != nil {
		v := *a.CompletedAt
		out.CompletedAt = &v
	}
	return out
}

func subjectContextOf(a Attempt) SubjectContext {
	return SubjectContext{
		JobTitle:       a.JobTitle,
		JobDescription: a.JobDescription,
		ResumeKey:      a.ResumeKey,
		ResumeText:     a.ResumeText,
		Questions:      append([]string(nil), a.Questions...),
	}
}

var _ Repo = (*MemoryRepo)(nil)
