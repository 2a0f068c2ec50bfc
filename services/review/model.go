package review

import (
	"time"
)

// Review is feedback left by one party of a paid job about the other.
// The composite unique index allows each party to review once per job.
type Review struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	JobID      string    `gorm:"column:job_id;uniqueIndex:idx_reviews_job_reviewer;not null" json:"job_id"`
	ReviewerID string    `gorm:"column:reviewer_id;uniqueIndex:idx_reviews_job_reviewer;not null" json:"reviewer_id"`
	RevieweeID string    `gorm:"column:reviewee_id;index;not null" json:"reviewee_id"`
	Rating     int       `gorm:"column:rating;not null" json:"rating"`
	Comment    string    `gorm:"column:comment" json:"comment,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// RatingSummary is the aggregate a profile page shows.
type RatingSummary struct {
	UserID        string  `json:"user_id"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int64   `json:"review_count"`
}
