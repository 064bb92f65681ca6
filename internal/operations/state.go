package operations

import (
	"sync"
	"time"
)

// OperationStatusValue is the outcome of a whole run.
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState is one pipeline run. Steps keep execution order; Context
// hands the extracted table, cleaned records and star schema from step to
// step and is never serialised.
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`
	Steps     []*StepState         `json:"steps"`
	Error     string               `json:"error,omitempty"`

	Context map[string]interface{} `json:"-"`
}

// NewOperationState returns a pending run.
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

func (p *OperationState) Complete() { p.end(OperationStatusCompleted, nil) }

func (p *OperationState) Fail(err error) { p.end(OperationStatusFailed, err) }

// Cancel ends a run whose context was cancelled between or during steps.
func (p *OperationState) Cancel(err error) { p.end(OperationStatusCancelled, err) }

func (p *OperationState) end(status OperationStatusValue, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = status
	if err != nil {
		p.Error = err.Error()
	}
}

// GetStage returns the record for stepID, or nil.
func (p *OperationState) GetStage(stepID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.Steps {
		if s.ID == stepID {
			return s
		}
	}
	return nil
}

func (p *OperationState) AddStage(state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps = append(p.Steps, state)
}

func (p *OperationState) GetContext(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Context[key]
	return val, ok
}

func (p *OperationState) SetContext(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// Duration measures up to now while the run is still going.
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime == nil {
		return time.Since(p.StartTime)
	}
	return p.EndTime.Sub(p.StartTime)
}

func (p *OperationState) GetStatus() OperationStatusValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status
}

// FailedStep returns the record of the step that aborted the run, or nil.
func (p *OperationState) FailedStep() *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.Steps {
		if s.GetStatus() == StepStatusFailed {
			return s
		}
	}
	return nil
}

// Clone copies the run for readers outside the pipeline goroutine. Context is
// left empty in the copy.
func (p *OperationState) Clone() *OperationState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c := &OperationState{
		ID:        p.ID,
		Status:    p.Status,
		StartTime: p.StartTime,
		Steps:     make([]*StepState, len(p.Steps)),
		Error:     p.Error,
		Context:   make(map[string]interface{}),
	}
	if p.EndTime != nil {
		end := *p.EndTime
		c.EndTime = &end
	}
	for i, s := range p.Steps {
		c.Steps[i] = s.snapshot()
	}
	return c
}
