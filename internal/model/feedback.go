package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FeedbackQuestions is the number of free-text answers on a feedback form.
const FeedbackQuestions = 5

// Feedback is a staff satisfaction survey entry.
type Feedback struct {
	ID        int64                     `json:"id"`
	StaffID   int64                     `json:"staff_id"`
	Rating    int                       `json:"rating"`
	Answers   [FeedbackQuestions]string `json:"answers"`
	CreatedAt time.Time                 `json:"created_at"`

	StaffName string `json:"staff_name,omitempty"`
}

// FeedbackStats summarises all feedback.
type FeedbackStats struct {
	Total         int             `json:"total"`
	AverageRating decimal.Decimal `json:"average_rating"`
}

// ValidateRating checks that a rating is between 1 and 5.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}

// TrimAnswers trims whitespace from every answer.
func TrimAnswers(answers [FeedbackQuestions]string) [FeedbackQuestions]string {
	for i := range answers {
		answers[i] = strings.TrimSpace(answers[i])
	}
	return answers
}
