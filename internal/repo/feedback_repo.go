package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// FeedbackRepo defines the interface for feedback repository operations
type FeedbackRepo interface {
	Create(ctx context.Context, name, email string, subject *string, message string) (uuid.UUID, error)
}

type feedbackRepo struct {
	db *sql.DB
}

// NewFeedbackRepo creates a new FeedbackRepo instance
func NewFeedbackRepo(db *sql.DB) FeedbackRepo {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Create(ctx context.Context, name, email string, subject *string, message string) (uuid.UUID, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO feedback (name, email, subject, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, email, subject, message).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert feedback: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse feedback ID: %w", err)
	}
	return id, nil
}
