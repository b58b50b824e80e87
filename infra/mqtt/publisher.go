package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/chpdispatch/core/dispatch"
	coremqtt "github.com/kilianp07/chpdispatch/core/mqtt"
)

// PlanPublisher mirrors the core mqtt.PlanPublisher interface.
type PlanPublisher = coremqtt.PlanPublisher

// NopPublisher drops plans. It is used when publication is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishPlan(_ string, plan *dispatch.Plan) (string, error) {
	if plan == nil {
		return "", nil
	}
	return plan.RunID, nil
}

func (NopPublisher) WaitForAck(string, time.Duration) (bool, error) { return true, nil }

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Messages   map[string]coremqtt.PlanMessage
	FailSites  map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Messages:   make(map[string]coremqtt.PlanMessage),
		FailSites:  make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// PublishPlan records the message or returns an error if configured to fail.
func (m *MockPublisher) PublishPlan(site string, plan *dispatch.Plan) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSites[site] {
		return "", fmt.Errorf("publish failed")
	}
	m.Messages[site] = coremqtt.NewPlanMessage(site, plan, time.Now())
	m.AckResults[plan.RunID] = true
	return plan.RunID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(runID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[runID]
	m.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("%w: %s", coremqtt.ErrUnknownRun, runID)
	}
	return ok, nil
}

// Message returns the last plan published for site.
func (m *MockPublisher) Message(site string) (coremqtt.PlanMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.Messages[site]
	return msg, ok
}
