package job

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the canonical job lifecycle enumeration.
type Status string

const (
	StatusOpen       Status = "open"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPaid       Status = "paid"
	StatusCancelled  Status = "cancelled"
)

// transitions is the only source of truth for legal status changes.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusPaid},
	StatusPaid:       {},
	StatusCancelled:  {},
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Job is a unit of work posted by a client and fulfilled by a runner.
// RunnerID stays empty until a runner accepts. Each *_At timestamp is set
// exactly once, by the transition that owns it.
type Job struct {
	ID               string         `gorm:"column:id;primaryKey" json:"id"`
	Slug             string         `gorm:"column:slug;index" json:"slug"`
	Title            string         `gorm:"column:title;not null" json:"title"`
	Description      string         `gorm:"column:description" json:"description"`
	ClientID         string         `gorm:"column:client_id;index;not null" json:"client_id"`
	RunnerID         string         `gorm:"column:runner_id;index" json:"runner_id,omitempty"`
	PriceCents       int64          `gorm:"column:price_cents;not null" json:"price_cents"`
	AgreedPriceCents int64          `gorm:"column:agreed_price_cents" json:"agreed_price_cents,omitempty"`
	AgreedPriceSats  int64          `gorm:"column:agreed_price_sats" json:"agreed_price_sats,omitempty"`
	Status           Status         `gorm:"column:status;index;default:'open'" json:"status"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	AcceptedAt       *time.Time     `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	StartedAt        *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	PaidAt           *time.Time     `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CancelledAt      *time.Time     `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
}
