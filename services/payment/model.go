package payment

import (
	"time"
)

// Payment records the Lightning settlement of one job. At most one row per
// job; the hash/preimage pair is the settlement proof.
type Payment struct {
	ID          string     `gorm:"column:id;primaryKey" json:"id"`
	JobID       string     `gorm:"column:job_id;uniqueIndex;not null" json:"job_id"`
	PaymentHash string     `gorm:"column:payment_hash;index" json:"payment_hash,omitempty"`
	AmountSats  int64      `gorm:"column:amount_sats;not null" json:"amount_sats"`
	Preimage    string     `gorm:"column:preimage" json:"preimage,omitempty"`
	PaidAt      *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
