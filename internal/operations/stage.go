package operations

import (
	"context"
	"sync"
	"time"
)

// Step is one unit of the pipeline. Validate runs before Execute and checks
// that the values the step reads from the run context are present.
type Step interface {
	ID() string
	Name() string
	Execute(ctx context.Context, state *OperationState) error
	Validate(state *OperationState) error
	GetDependencies() []string
}

// StepStatus is where a step is in its lifecycle.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState is the progress record of one step within a run. It is what the
// status endpoint serialises.
type StepState struct {
	mu        sync.RWMutex
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    StepStatus             `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStepState returns a pending record for the step.
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]interface{}),
	}
}

func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

func (s *StepState) Complete() {
	s.finish(StepStatusCompleted, nil)
}

// Fail records err as the reason the step stopped.
func (s *StepState) Fail(err error) {
	s.finish(StepStatusFailed, err)
}

func (s *StepState) finish(status StepStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = status
	if err != nil {
		s.Error = err.Error()
	}
}

// Skip marks a step that never started.
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StepStatusSkipped
	s.Message = reason
}

// SetMetadata attaches a figure such as a row count to the record.
func (s *StepState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration is zero for a step that has not started and still grows while it
// is active.
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.StartTime == nil:
		return 0
	case s.EndTime == nil:
		return time.Since(*s.StartTime)
	default:
		return s.EndTime.Sub(*s.StartTime)
	}
}

func (s *StepState) snapshot() *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &StepState{
		ID:        s.ID,
		Name:      s.Name,
		Status:    s.Status,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Message:   s.Message,
		Error:     s.Error,
		Metadata:  make(map[string]interface{}, len(s.Metadata)),
	}
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// stepInfo carries the identity half of Step for the concrete steps.
type stepInfo struct {
	id        string
	name      string
	dependsOn []string
}

func newStepInfo(id, name string, dependsOn ...string) stepInfo {
	return stepInfo{id: id, name: name, dependsOn: dependsOn}
}

func (i stepInfo) ID() string { return i.id }

func (i stepInfo) Name() string { return i.name }

func (i stepInfo) GetDependencies() []string { return i.dependsOn }
