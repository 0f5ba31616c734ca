package audit

import "time"

// Actions emitted by the governance core.
const (
	ActionRetentionRunSucceeded = "retention_run_succeeded"
	ActionRetentionRunFailed    = "retention_run_failed"
	ActionLegalHoldHonored      = "legal_hold_honored"
	ActionAbuseBanIssued        = "abuse_ban_issued"
	ActionAbuseBanRejected      = "abuse_ban_rejected"
)

// Event is emitted from domain logic to capture governance-relevant actions.
// Transport-agnostic so stores and sinks can fan out. IP material is always
// masked or hashed before it reaches an event; raw addresses never appear.
type Event struct {
	Timestamp time.Time
	TenantID  string
	Action    string
	// Subject is the pseudonymous key the action concerns (e.g. an ip hash).
	Subject string
	Dataset  string
	MaskedIP string
	Country  string
	Count    int64
	Detail   string
}
