package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

// CreateFeedback records a staff feedback entry.
func CreateFeedback(ctx context.Context, q db.Querier, staffID int64, rating int, answers [model.FeedbackQuestions]string) (*model.Feedback, error) {
	f := &model.Feedback{StaffID: staffID, Rating: rating, Answers: answers}
	err := q.QueryRowContext(ctx,
		`INSERT INTO feedback (staff_id, rating, question_1, question_2, question_3, question_4, question_5)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id, created_at`,
		staffID, rating, nullString(answers[0]), nullString(answers[1]), nullString(answers[2]),
		nullString(answers[3]), nullString(answers[4]),
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating feedback: %w", err)
	}
	return f, nil
}

// RecentFeedback returns the newest feedback entries.
func RecentFeedback(ctx context.Context, q db.Querier, limit int) ([]model.Feedback, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT f.id, f.staff_id, f.rating, f.question_1, f.question_2, f.question_3, f.question_4,
		        f.question_5, f.created_at, u.full_name
		 FROM feedback f
		 JOIN users u ON u.id = f.staff_id
		 ORDER BY f.created_at DESC, f.id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var entries []model.Feedback
	for rows.Next() {
		var f model.Feedback
		var answers [model.FeedbackQuestions]sql.NullString
		if err := rows.Scan(&f.ID, &f.StaffID, &f.Rating, &answers[0], &answers[1], &answers[2],
			&answers[3], &answers[4], &f.CreatedAt, &f.StaffName); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		for i, a := range answers {
			f.Answers[i] = a.String
		}
		entries = append(entries, f)
	}
	return entries, rows.Err()
}

// GetFeedbackStats returns the number of entries and the average rating
// rounded to one decimal place.
func GetFeedbackStats(ctx context.Context, q db.Querier) (model.FeedbackStats, error) {
	var stats model.FeedbackStats
	var avg decimal.NullDecimal
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(CAST(rating AS NUMERIC)) FROM feedback`,
	).Scan(&stats.Total, &avg)
	if err != nil {
		return stats, fmt.Errorf("getting feedback stats: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = avg.Decimal.Round(1)
	}
	return stats, nil
}
