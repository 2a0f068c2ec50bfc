package payout

import (
	"time"

	"gorm.io/datatypes"
)

// EarningStatus tracks a payout through its ledger lifecycle.
type EarningStatus string

const (
	StatusPending    EarningStatus = "pending"
	StatusProcessing EarningStatus = "processing"
	StatusCompleted  EarningStatus = "completed"
	StatusFailed     EarningStatus = "failed"
)

// Earning is the ledger row for one runner payout. One per job, enforced by
// the unique index on job_id. Gross, fee and net are carried in both cents
// and sats; net + fee equals gross in each unit.
type Earning struct {
	ID               string         `gorm:"column:id;primaryKey" json:"id"`
	RunnerID         string         `gorm:"column:runner_id;index;not null" json:"runner_id"`
	JobID            string         `gorm:"column:job_id;uniqueIndex;not null" json:"job_id"`
	AmountCents      int64          `gorm:"column:amount_cents;not null" json:"amount_cents"`
	AmountSats       int64          `gorm:"column:amount_sats;not null" json:"amount_sats"`
	PlatformFeeCents int64          `gorm:"column:platform_fee_cents" json:"platform_fee_cents"`
	PlatformFeeSats  int64          `gorm:"column:platform_fee_sats" json:"platform_fee_sats"`
	NetAmountCents   int64          `gorm:"column:net_amount_cents;not null" json:"net_amount_cents"`
	NetAmountSats    int64          `gorm:"column:net_amount_sats;not null" json:"net_amount_sats"`
	Status           EarningStatus  `gorm:"column:status;index;default:'pending'" json:"status"`
	ErrorMessage     string         `gorm:"column:error_message" json:"error_message,omitempty"`
	RetryCount       int            `gorm:"column:retry_count;default:0" json:"retry_count"`
	PaymentHash      string         `gorm:"column:payment_hash" json:"payment_hash,omitempty"`
	PaymentPreimage  string         `gorm:"column:payment_preimage" json:"payment_preimage,omitempty"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
}
