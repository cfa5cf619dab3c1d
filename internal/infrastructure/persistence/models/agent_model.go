package models

import "time"

// AgentModel is the database row for an agent.
type AgentModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"index;size:128;not null"`
	Description   string `gorm:"type:text"`
	Status        string `gorm:"index;size:32;not null"`
	Capabilities  string `gorm:"type:text"` // JSON encoded list
	Personality   string `gorm:"type:text"`
	Settings      string `gorm:"type:text"` // JSON encoded map
	CurrentPlanID string `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name.
func (AgentModel) TableName() string {
	return "agents"
}
