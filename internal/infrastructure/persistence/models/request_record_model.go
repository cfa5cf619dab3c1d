package models

import "time"

// RequestRecordModel is the database row for one external call record.
// Rows are append-only and never updated.
type RequestRecordModel struct {
	ID               string `gorm:"primaryKey;size:64"`
	Provider         string `gorm:"index;size:64"`
	Model            string `gorm:"size:128"`
	Operation        string `gorm:"index;size:64"`
	Prompt           string `gorm:"type:text"`
	Response         string `gorm:"type:text"`
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	DurationMS       int64
	Status           string `gorm:"size:16"`
	ErrorText        string `gorm:"type:text"`
	ToolCalls        int
	AgentID          string    `gorm:"index;size:64"`
	PlanID           string    `gorm:"index;size:64"`
	CreatedAt        time.Time `gorm:"index"`
}

// TableName specifies the table name.
func (RequestRecordModel) TableName() string {
	return "request_log"
}
