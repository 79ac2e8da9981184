package models

import "time"

const (
	ReviewSeverityLow      = "low"
	ReviewSeverityMedium   = "medium"
	ReviewSeverityHigh     = "high"
	ReviewSeverityCritical = "critical"

	ReviewStatusPending    = "pending"
	ReviewStatusInProgress = "in_progress"
	ReviewStatusResolved   = "resolved"
	ReviewStatusDismissed  = "dismissed"

	IssueUnmatchedSell = "unmatched_sell"
)

// ManualReviewItem is a durable worklist entry for trades the matcher could
// not fully resolve. The engine upserts on (order_id, issue_type); operator
// tooling owns status transitions. Rows are never deleted automatically.
type ManualReviewItem struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	OrderID   string `gorm:"type:varchar(100);not null;uniqueIndex:uq_review_order_issue"`
	IssueType string `gorm:"type:varchar(50);not null;uniqueIndex:uq_review_order_issue"`
	Symbol    string `gorm:"type:varchar(30);index"`

	Severity    string `gorm:"type:varchar(10);not null;default:'medium';index"`
	Status      string `gorm:"type:varchar(20);not null;default:'pending';index"`
	Description string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ManualReviewItem) TableName() string {
	return "manual_review_queue"
}
