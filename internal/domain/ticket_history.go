package domain

import "time"

// TicketActionType names the transition a history entry documents.
type TicketActionType string

const (
	ActionTicketRaised       TicketActionType = "TICKET_RAISED"
	ActionPCPlanningComplete TicketActionType = "PC_PLANNING_COMPLETE"
	ActionTicketSolved       TicketActionType = "TICKET_SOLVED"
	ActionDateRevised        TicketActionType = "DATE_REVISED"
	ActionPCConfirmed        TicketActionType = "PC_CONFIRMED"
	ActionTicketClosed       TicketActionType = "TICKET_CLOSED"
	ActionTicketReraised     TicketActionType = "TICKET_RERAISED"
)

// TicketSnapshotVersion is bumped whenever the Ticket JSON shape changes incompatibly.
const TicketSnapshotVersion = 1

// TicketSnapshot is a versioned copy of a ticket stored in history.
type TicketSnapshot struct {
	SchemaVersion int     `json:"schema_version"`
	Ticket        *Ticket `json:"ticket"`
}

// NewTicketSnapshot copies t into a snapshot; nil yields nil.
func NewTicketSnapshot(t *Ticket) *TicketSnapshot {
	if t == nil {
		return nil
	}
	return &TicketSnapshot{SchemaVersion: TicketSnapshotVersion, Ticket: t.Clone()}
}

// TicketHistoryEntry is an immutable audit trail entry.
type TicketHistoryEntry struct {
	ID         string           `json:"id"`
	TicketID   string           `json:"ticket_id"`
	TicketNo   string           `json:"ticket_no"`
	Stage      int              `json:"stage"`
	OldValues  *TicketSnapshot  `json:"old_values"`
	NewValues  *TicketSnapshot  `json:"new_values"`
	ActionType TicketActionType `json:"action_type"`
	ActionBy   string           `json:"action_by"`
	ActionDate time.Time        `json:"action_date"`
	Remarks    string           `json:"remarks"`
}
