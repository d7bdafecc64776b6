package model

import "time"

// ImportState tracks an import request through planning or execution.
type ImportState string

const (
	ImportReceived       ImportState = "RECEIVED"
	ImportPreviewed      ImportState = "PREVIEWED"
	ImportExecuting      ImportState = "EXECUTING"
	ImportCommitted      ImportState = "COMMITTED"
	ImportPartialFailure ImportState = "PARTIAL_FAILURE"
)

// PlanAction is what an import does with one deal.
type PlanAction string

const (
	PlanCreate PlanAction = "create"
	PlanUpdate PlanAction = "update"
	PlanSkip   PlanAction = "skip"
)

// ImportOptions controls which writes an import may perform.
type ImportOptions struct {
	CreateNewClients bool `json:"createNewClients" mapstructure:"create_new_clients"`
	UpdateExisting   bool `json:"updateExisting" mapstructure:"update_existing"`
	CreateTasks      bool `json:"createTasks" mapstructure:"create_tasks"`
	DryRun           bool `json:"dryRun" mapstructure:"dry_run"`
}

// DefaultImportOptions returns the options used when a request leaves them unset.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		CreateNewClients: true,
		UpdateExisting:   true,
		CreateTasks:      true,
		DryRun:           false,
	}
}

// FieldChange is one pipeline field an update would modify.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// DealPlan is the planned handling of one deal.
type DealPlan struct {
	DealName   string        `json:"dealName"`
	Owner      SalesOwner    `json:"owner"`
	Action     PlanAction    `json:"action"`
	ClientID   string        `json:"clientId,omitempty"`
	ClientName string        `json:"clientName,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Changes    []FieldChange `json:"changes,omitempty"`
	HasTask    bool          `json:"hasTask"`
}

// ImportPreview is the dry-run output. It never corresponds to a write.
type ImportPreview struct {
	State         ImportState `json:"state"`
	FileName      string      `json:"fileName"`
	Deals         []DealPlan  `json:"deals"`
	ToCreate      int         `json:"toCreate"`
	ToUpdate      int         `json:"toUpdate"`
	ToSkip        int         `json:"toSkip"`
	TasksToCreate int         `json:"tasksToCreate"`
	TotalValue    float64     `json:"totalValue"`
	Warnings      []string    `json:"warnings"`
}

// DealOutcome is what an executed import did with one deal.
type DealOutcome struct {
	DealName string     `json:"dealName"`
	Action   PlanAction `json:"action"`
	ClientID string     `json:"clientId,omitempty"`
	TaskID   string     `json:"taskId,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// ImportResult is the output of an executed import.
type ImportResult struct {
	ImportID       string        `json:"importId"`
	State          ImportState   `json:"state"`
	Success        bool          `json:"success"`
	DealsImported  int           `json:"dealsImported"`
	ClientsCreated int           `json:"clientsCreated"`
	ClientsUpdated int           `json:"clientsUpdated"`
	DealsSkipped   int           `json:"dealsSkipped"`
	TasksCreated   int           `json:"tasksCreated"`
	Deals          []DealOutcome `json:"deals"`
	Errors         []string      `json:"errors"`
	Warnings       []string      `json:"warnings"`
}

// SalesReportImport is the audit row written once per executed import.
type SalesReportImport struct {
	ID             string        `json:"id"`
	FileName       string        `json:"fileName"`
	ReportDate     time.Time     `json:"reportDate"`
	ParsingMethod  ParsingMethod `json:"parsingMethod,omitempty"`
	State          ImportState   `json:"state"`
	DealsTotal     int           `json:"dealsTotal"`
	DealsImported  int           `json:"dealsImported"`
	ClientsCreated int           `json:"clientsCreated"`
	ClientsUpdated int           `json:"clientsUpdated"`
	DealsSkipped   int           `json:"dealsSkipped"`
	TasksCreated   int           `json:"tasksCreated"`
	RawExtraction  []byte        `json:"-"`
	Errors         []string      `json:"errors"`
	Warnings       []string      `json:"warnings"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// HasErrors reports whether any deal failed during the import.
func (i SalesReportImport) HasErrors() bool {
	return len(i.Errors) > 0
}
