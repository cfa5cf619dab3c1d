package models

import "time"

// PlanModel is the database row for a plan. Steps live in their own
// table keyed by PlanID.
type PlanModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	AgentID     string `gorm:"index;size:64;not null"`
	Command     string `gorm:"type:text"`
	Description string `gorm:"type:text"`
	Reasoning   string `gorm:"type:text"`
	Status      string `gorm:"index;size:32;not null"`
	HasFollowUp bool
	FollowUps   string `gorm:"type:text"` // JSON encoded list
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName specifies the table name.
func (PlanModel) TableName() string {
	return "plans"
}

// StepModel is the database row for one plan step.
type StepModel struct {
	ID               string `gorm:"primaryKey;size:64"`
	PlanID           string `gorm:"index;size:64;not null"`
	Position         int
	Description      string `gorm:"type:text"`
	Details          string `gorm:"type:text"`
	EstimatedSeconds int
	Status           string `gorm:"size:32;not null"`
	Result           string `gorm:"type:text"`
	StartedAt        *time.Time
	FinishedAt       *time.Time
}

// TableName specifies the table name.
func (StepModel) TableName() string {
	return "plan_steps"
}
