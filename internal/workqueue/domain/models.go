// Package domain contains the durable work-queue records handed off to
// external workers after settlement-status transitions.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

const (
	ActionCreateCorrectionInvoice = "create_correction_invoice"
	ActionPrepareEsignDocument    = "prepare_esign_document"

	DestinationInvoiceWorker = "invoice-worker"
	DestinationEsignWorker   = "esign-worker"
)

// Job is one durable work item. Consumption happens out of process; this
// core only appends.
type Job struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	Event       string            `gorm:"type:text;not null"`
	Action      string            `gorm:"type:text;not null;index"`
	Params      datatypes.JSONMap `gorm:"type:jsonb"`
	Destination string            `gorm:"type:text;not null;index"`
	Priority    int               `gorm:"not null;default:0"`
	Status      JobStatus         `gorm:"type:text;not null;default:'pending';index"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Job) TableName() string { return "work_queue_jobs" }

type Service interface {
	Enqueue(ctx context.Context, event, action string, params map[string]any, destination string, priority int) (Job, error)
}
