// Package models defines the retention domain records: per-dataset policies,
// the governed-dataset descriptors driving a retention pass, and the
// immutable audit record each pass leaves behind.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a retention pass.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RetentionPolicy configures retention for one (tenant, dataset) pair.
// Zero-valued day fields inherit the tenant defaults.
type RetentionPolicy struct {
	TenantID   string
	DatasetKey string
	// RetentionDays overrides the tenant's event retention window when > 0.
	RetentionDays int
	// RawIPRetentionDays overrides the tenant's raw-IP window when > 0.
	RawIPRetentionDays int
	// LegalHold suspends all deletion and scrubbing for the dataset
	// regardless of age or retention windows.
	LegalHold       bool
	LegalHoldReason string
	LegalHoldSince  *time.Time
}

// RetentionRun is the audit record of one retention pass for one tenant.
// The retention windows are captured at run start so later policy edits never
// change what a historical record claims it did. Immutable once finished.
type RetentionRun struct {
	ID         uuid.UUID
	TenantID   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	// Windows in effect when the run started.
	EventRetentionDays int
	RawIPRetentionDays int
	// Cutoffs computed from those windows.
	EventCutoff time.Time
	RawIPCutoff time.Time
	// DatasetCounts records rows deleted or scrubbed per dataset key. Legal
	// holds record an explicit zero.
	DatasetCounts map[string]int64
	// Error holds the failure message when Status is failed.
	Error string
}

// CutoffKind selects which retention window applies to a dataset.
type CutoffKind string

const (
	CutoffEvent CutoffKind = "event"
	CutoffRawIP CutoffKind = "raw_ip"
)

// Mode selects how qualifying rows are handled.
type Mode string

const (
	// ModeDelete destroys whole rows older than the cutoff.
	ModeDelete Mode = "delete"
	// ModeScrub nulls the raw IP column of rows older than the cutoff while
	// the precomputed pseudonymous hash column survives.
	ModeScrub Mode = "scrub"
)

// Dataset describes one governed dataset. The retention pass is a uniform
// loop over these descriptors; adding a dataset means adding a descriptor.
type Dataset struct {
	Key             string
	Table           string
	TimestampColumn string
	Cutoff          CutoffKind
	Mode            Mode
	// ScrubColumn is the raw value column nulled in ModeScrub.
	ScrubColumn string
}

// GovernedDatasets returns the datasets in their fixed processing order:
// destructive deletions first, then raw-IP scrubs.
func GovernedDatasets() []Dataset {
	return []Dataset{
		{Key: "events", Table: "events", TimestampColumn: "occurred_at", Cutoff: CutoffEvent, Mode: ModeDelete},
		{Key: "security_events", Table: "security_events", TimestampColumn: "occurred_at", Cutoff: CutoffEvent, Mode: ModeDelete},
		{Key: "security_events_ip", Table: "security_events", TimestampColumn: "occurred_at", Cutoff: CutoffRawIP, Mode: ModeScrub, ScrubColumn: "ip_address"},
		{Key: "alerts_ip", Table: "alerts", TimestampColumn: "created_at", Cutoff: CutoffRawIP, Mode: ModeScrub, ScrubColumn: "ip_address"},
		{Key: "audit_logs_ip", Table: "audit_logs", TimestampColumn: "created_at", Cutoff: CutoffRawIP, Mode: ModeScrub, ScrubColumn: "ip_address"},
	}
}
