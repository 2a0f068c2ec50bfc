package user

import (
	"time"
)

// User is anyone on the platform. The same account can post jobs as a client
// and fulfil them as a runner.
type User struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	Email       string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"column:display_name;not null" json:"display_name"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// RunnerProfile holds the payout details a user needs before running jobs.
type RunnerProfile struct {
	ID               string    `gorm:"column:id;primaryKey" json:"id"`
	UserID           string    `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	LightningAddress string    `gorm:"column:lightning_address" json:"lightning_address"`
	Bio              string    `gorm:"column:bio" json:"bio"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
