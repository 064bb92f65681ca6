package operations

import (
	"time"
)

// Step identifiers, in pipeline order
const (
	StepIDExtract   = "extract"
	StepIDTransform = "transform"
	StepIDMap       = "map"
	StepIDLoad      = "load"
	StepIDVerify    = "verify"
	StepIDExport    = "export"
)

// Step names
const (
	StepNameExtract   = "Extract Spreadsheet"
	StepNameTransform = "Clean and Derive"
	StepNameMap       = "Map Star Schema"
	StepNameLoad      = "Load Warehouse"
	StepNameVerify    = "Verify Warehouse"
	StepNameExport    = "Export Snapshot"
)

// Context keys for data handed from one step to the next
const (
	ContextKeyRawTable    = "raw_table"
	ContextKeyRecords     = "records"
	ContextKeyCleanReport = "clean_report"
	ContextKeyStar        = "star"
	ContextKeyDB          = "db"
	ContextKeyLoadSummary = "load_summary"
	ContextKeyExport      = "export_result"
)

// Default timeouts
const (
	DefaultStepTimeout    = 30 * time.Minute
	DefaultExtractTimeout = 10 * time.Minute
	DefaultLoadTimeout    = 60 * time.Minute
)

// OperationRequest identifies a pipeline run
type OperationRequest struct {
	ID string `json:"id"`
}

// OperationResponse is the outcome of a pipeline run
type OperationResponse struct {
	ID       string               `json:"id"`
	Status   OperationStatusValue `json:"status"`
	Duration time.Duration        `json:"duration"`
	Steps    []*StepState         `json:"steps"`
	Error    string               `json:"error,omitempty"`
}
