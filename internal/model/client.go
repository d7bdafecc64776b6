package model

import "time"

// ClientSource records how a client row entered the registry.
type ClientSource string

const (
	SourceManual      ClientSource = "manual"
	SourceSalesReport ClientSource = "sales_report"
	SourceSeed        ClientSource = "seed"
)

// Client is a row of the client registry.
type Client struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Vertical       string       `json:"vertical"`
	Website        string       `json:"website,omitempty"`
	SalesOwner     SalesOwner   `json:"salesOwner,omitempty"`
	SalesStage     *SalesStage  `json:"salesStage,omitempty"`
	DealValue      *float64     `json:"dealValue,omitempty"`
	NextStep       *string      `json:"nextStep,omitempty"`
	ParentClientID *string      `json:"parentClientId,omitempty"`
	Source         ClientSource `json:"source"`
	LastImportedAt *time.Time   `json:"lastImportedAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// PipelineUpdate carries the pipeline fields an import writes onto an
// existing client. Nil fields are left unchanged.
type PipelineUpdate struct {
	SalesOwner     SalesOwner
	SalesStage     *SalesStage
	DealValue      *float64
	NextStep       *string
	ParentClientID *string
	ImportedAt     time.Time
}

// TaskStatus is the lifecycle state of a sales task.
type TaskStatus string

const (
	TaskOpen TaskStatus = "open"
	TaskDone TaskStatus = "done"
)

// SalesTask is a follow-up linked to a client.
type SalesTask struct {
	ID          string       `json:"id"`
	ClientID    string       `json:"clientId"`
	Title       string       `json:"title"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	DueDateText string       `json:"dueDateText,omitempty"`
	Priority    TaskPriority `json:"priority"`
	IsOverdue   bool         `json:"isOverdue"`
	Owner       SalesOwner   `json:"owner"`
	Status      TaskStatus   `json:"status"`
	Source      ClientSource `json:"source"`
	CreatedAt   time.Time    `json:"createdAt"`
}
