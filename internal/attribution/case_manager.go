package attribution

import (
	"sort"
	"sync"
	"time"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Case Manager
//
// Manages holdings investigations. An analyst:
//   1. Creates a case with one or more target addresses
//   2. Attaches engine reports as they are generated
//   3. Tags addresses (exchange, suspect, custodian)
//   4. Reviews the aggregate timeline and exposure estimate
//
// Each case keeps every attached report so tier movement between runs
// stays auditable.
//
// Case lifecycle:
//   active    → reports being attached, addresses being tagged
//   completed → attribution settled
//   archived  → closed and preserved for records

// Case represents a single holdings investigation
type Case struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Description     string                  `json:"description"`
	Status          string                  `json:"status"` // "active"/"completed"/"archived"
	TargetAddresses []string                `json:"targetAddresses"`
	TaggedAddresses []TaggedAddress         `json:"taggedAddresses"`
	Reports         []models.HoldingsReport `json:"reports,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

// TaggedAddress is an address with analyst-provided metadata
type TaggedAddress struct {
	Address  string    `json:"address"`
	Label    string    `json:"label"` // "Binance Hot Wallet", "Suspect Wallet", etc.
	Role     string    `json:"role"`  // "target"/"suspect"/"exchange"/"custodian"/"unknown"
	Notes    string    `json:"notes,omitempty"`
	TaggedAt time.Time `json:"taggedAt"`
	TaggedBy string    `json:"taggedBy,omitempty"` // Analyst name/ID
}

// CaseEvent is one entry in a case's chronological timeline
type CaseEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"eventType"` // "created"/"report_attached"/"risk_flag"/"tagged"/"status_change"
	Description string    `json:"description"`
	Address     string    `json:"address,omitempty"`
	ReportID    string    `json:"reportId,omitempty"`
}

// CaseManager handles CRUD for cases
type CaseManager struct {
	mu     sync.RWMutex
	cases  map[string]*Case
	events map[string][]CaseEvent
}

// NewCaseManager creates a new case manager
func NewCaseManager() *CaseManager {
	return &CaseManager{
		cases:  make(map[string]*Case),
		events: make(map[string][]CaseEvent),
	}
}

// CreateCase starts a new holdings investigation
func (m *CaseManager) CreateCase(id, name, description string, targetAddresses []string) *Case {
	now := time.Now()
	c := &Case{
		ID:              id,
		Name:            name,
		Description:     description,
		Status:          "active",
		TargetAddresses: targetAddresses,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.mu.Lock()
	m.cases[id] = c
	m.events[id] = append(m.events[id], CaseEvent{
		Timestamp:   now,
		EventType:   "created",
		Description: "Case opened: " + name,
	})
	m.mu.Unlock()
	return c
}

// GetCase retrieves a case by ID
func (m *CaseManager) GetCase(id string) *Case {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cases[id]
}

// ListCases returns all cases, newest first
func (m *CaseManager) ListCases() []*Case {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Case, 0, len(m.cases))
	for _, c := range m.cases {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// AttachReport records an engine report against a case. Every risk flag in
// the report becomes its own timeline event so the case log reads as a
// running narrative.
func (m *CaseManager) AttachReport(id string, report models.HoldingsReport) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[id]
	if !ok {
		return false
	}

	c.Reports = append(c.Reports, report)
	c.UpdatedAt = time.Now()

	m.events[id] = append(m.events[id], CaseEvent{
		Timestamp:   report.GeneratedAt,
		EventType:   "report_attached",
		Description: "Analysis completed for " + report.TargetDisplayAddress,
		Address:     report.TargetAddress,
		ReportID:    report.ID,
	})
	for _, flag := range report.RiskFlags {
		m.events[id] = append(m.events[id], CaseEvent{
			Timestamp:   report.GeneratedAt,
			EventType:   "risk_flag",
			Description: flag,
			Address:     report.TargetAddress,
			ReportID:    report.ID,
		})
	}
	return true
}

// TagAddress attaches analyst metadata to an address within a case
func (m *CaseManager) TagAddress(id, address, label, role, notes, taggedBy string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[id]
	if !ok {
		return false
	}

	now := time.Now()
	tagged := false
	for i := range c.TaggedAddresses {
		if c.TaggedAddresses[i].Address == address {
			c.TaggedAddresses[i].Label = label
			c.TaggedAddresses[i].Role = role
			c.TaggedAddresses[i].Notes = notes
			c.TaggedAddresses[i].TaggedBy = taggedBy
			c.TaggedAddresses[i].TaggedAt = now
			tagged = true
			break
		}
	}
	if !tagged {
		c.TaggedAddresses = append(c.TaggedAddresses, TaggedAddress{
			Address:  address,
			Label:    label,
			Role:     role,
			Notes:    notes,
			TaggedAt: now,
			TaggedBy: taggedBy,
		})
	}
	c.UpdatedAt = now

	m.events[id] = append(m.events[id], CaseEvent{
		Timestamp:   now,
		EventType:   "tagged",
		Description: "Tagged " + address + " as " + role + " (" + label + ")",
		Address:     address,
	})
	return true
}

// SetStatus transitions a case through its lifecycle
func (m *CaseManager) SetStatus(id, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[id]
	if !ok {
		return false
	}
	c.Status = status
	c.UpdatedAt = time.Now()

	m.events[id] = append(m.events[id], CaseEvent{
		Timestamp:   c.UpdatedAt,
		EventType:   "status_change",
		Description: "Case status set to " + status,
	})
	return true
}

// GetTimeline returns the chronological event log for a case
func (m *CaseManager) GetTimeline(id string) []CaseEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := m.events[id]
	out := make([]CaseEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// ComputeExposure sums the known balances of HIGH and MEDIUM tier wallets
// across the most recent report of every target in the case. This is the
// case-level analogue of a single report's combined holdings estimate.
func (m *CaseManager) ComputeExposure(id string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cases[id]
	if !ok {
		return 0
	}

	// Most recent report per target wins.
	latest := make(map[string]*models.HoldingsReport)
	for i := range c.Reports {
		r := &c.Reports[i]
		prev, seen := latest[r.TargetAddress]
		if !seen || r.GeneratedAt.After(prev.GeneratedAt) {
			latest[r.TargetAddress] = r
		}
	}

	total := 0.0
	for _, r := range latest {
		if r.TargetBalance != nil {
			total += *r.TargetBalance
		}
		for _, w := range r.Wallets {
			if w.Confidence == models.ConfidenceLow || w.Balance == nil {
				continue
			}
			total += *w.Balance
		}
	}
	return total
}
