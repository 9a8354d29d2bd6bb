package attempts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"interview-backend/internal/shared/storage/object"
	"interview-backend/internal/shared/telemetry"
)

const (
	maxScriptedQuestions = 50
	maxJobDescription    = 20000
)

// CreateInput is the payload for a new attempt.
type CreateInput struct {
	SubjectID      string   `json:"subjectId"`
	PositionID     string   `json:"positionId"`
	JobTitle       string   `json:"jobTitle"`
	JobDescription string   `json:"jobDescription"`
	ResumeKey      string   `json:"resumeKey"`
	ResumeText     string   `json:"resumeText"`
	Questions      []string `json:"questions"`
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ValidationError carries per-field problems and matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Issue)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Service contains business logic for attempts.
type Service struct {
	Repo  Repo
	Store object.Store
	Now   func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, store object.Store) *Service {
	return &Service{Repo: repo, Store: store, Now: time.Now}
}

// Create validates the input and stores a new in-progress attempt.
func (s *Service) Create(ctx context.Context, in CreateInput) (Attempt, error) {
	in = normalizeInput(in)
	if err := validate(in); err != nil {
		return Attempt{}, err
	}

	attempt := Attempt{
		ID:             uuid.NewString(),
		SubjectID:      in.SubjectID,
		PositionID:     in.PositionID,
		JobTitle:       in.JobTitle,
		JobDescription: in.JobDescription,
		ResumeKey:      in.ResumeKey,
		ResumeText:     in.ResumeText,
		Questions:      in.Questions,
		Turns:          []Turn{},
		Status:         StatusInProgress,
		CreatedAt:      Timestamp(s.now()),
	}
	if err := s.Repo.Create(ctx, attempt); err != nil {
		return Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	telemetry.Info("attempt.created", map[string]any{
		"attempt_id": attempt.ID,
		"subject_id": attempt.SubjectID,
		"scripted":   len(attempt.Questions) > 0,
	})
	return attempt, nil
}

// Get returns an attempt with its transcript.
func (s *Service) Get(ctx context.Context, attemptID string) (Attempt, error) {
	return s.Repo.GetByID(ctx, attemptID)
}

// List returns a subject's attempts, newest first.
func (s *Service) List(ctx context.Context, subjectID string, limit, offset int) ([]Attempt, error) {
	return s.Repo.ListBySubject(ctx, subjectID, limit, offset)
}

// SaveResume stores an uploaded résumé file and returns its object key.
func (s *Service) SaveResume(ctx context.Context, subjectID, fileName string, r io.Reader) (object.Object, error) {
	if s.Store == nil {
		return object.Object{}, errors.New("object store not configured")
	}
	if strings.TrimSpace(subjectID) == "" {
		return object.Object{}, &ValidationError{Fields: []FieldError{{Field: "subjectId", Issue: "required"}}}
	}
	obj, err := s.Store.Save(ctx, subjectID, fileName, r)
	if err != nil {
		return object.Object{}, fmt.Errorf("save resume: %w", err)
	}
	telemetry.Info("attempt.resume_saved", map[string]any{
		"subject_id":   subjectID,
		"size":         obj.Size,
		"content_type": obj.ContentType,
	})
	return obj, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func normalizeInput(in CreateInput) CreateInput {
	in.SubjectID = strings.TrimSpace(in.SubjectID)
	in.PositionID = strings.TrimSpace(in.PositionID)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.JobDescription = strings.TrimSpace(in.JobDescription)
	in.ResumeKey = strings.TrimSpace(in.ResumeKey)
	in.ResumeText = strings.TrimSpace(in.ResumeText)
	var questions []string
	for _, q := range in.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	in.Questions = questions
	return in
}

func validate(in CreateInput) error {
	var fields []FieldError
	if in.SubjectID == "" {
		fields = append(fields, FieldError{Field: "subjectId", Issue: "required"})
	}
	if in.JobDescription == "" && in.JobTitle == "" && len(in.Questions) == 0 {
		fields = append(fields, FieldError{Field: "jobDescription", Issue: "jobDescription, jobTitle or questions required"})
	}
	if len(in.JobDescription) > maxJobDescription {
		fields = append(fields, FieldError{Field: "jobDescription", Issue: "too_long"})
	}
	if len(in.Questions) > maxScriptedQuestions {
		fields = append(fields, FieldError{Field: "questions", Issue: "too_many"})
	}
	if strings.Contains(in.ResumeKey, "..") {
		fields = append(fields, FieldError{Field: "resumeKey", Issue: "invalid"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
