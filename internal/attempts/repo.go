package attempts

import (
	"context"
	"time"
)

// Repo persists attempts and their transcripts.
type Repo interface {
	Create(ctx context.Context, attempt Attempt) error
	// GetByID returns the attempt with its turns in index order.
	GetByID(ctx context.Context, attemptID string) (Attempt, error)
	SubjectContext(ctx context.Context, attemptID string) (SubjectContext, error)
	// AppendTurn adds the next turn; turn.Index must equal QuestionCount+1.
	AppendTurn(ctx context.Context, attemptID string, turn Turn) error
	// RecordAnswer closes turn index. answer is nil when the turn timed out.
	RecordAnswer(ctx context.Context, attemptID string, index int, answer *string, answeredAt time.Time, timedOut bool) error
	Finalize(ctx context.Context, attemptID string, result Result) error
	// Abandon marks an in-progress attempt abandoned. It is a no-op otherwise.
	Abandon(ctx context.Context, attemptID string) error
	ListBySubject(ctx context.Context, subjectID string, limit, offset int) ([]Attempt, error)
}
