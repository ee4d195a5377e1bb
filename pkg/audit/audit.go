package audit

import (
	"fmt"
	"time"
)

// This package produces the audit representation persisted by the
// entitlement and credit services. It performs no I/O so the format can
// change without touching transaction logic.

const (
	AdjustmentTypeManualAdmin = "manual_admin"
	SourceAdminBoard          = "admin_board"
)

// TransactionMetadata is the structured audit payload stored in the
// metadata column of a credit transaction.
type TransactionMetadata struct {
	AdminUsername   string         `json:"admin_username"`
	AdminReason     string         `json:"admin_reason"`
	AdjustmentType  string         `json:"adjustment_type"`
	Source          string         `json:"source"`
	TransactionType string         `json:"transaction_type,omitempty"`
	Timestamp       string         `json:"timestamp"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// StampNote prefixes a raw note with the acting admin and the current
// UTC time, e.g. "[ADMIN: alice @ 2026-01-02T15:04:05Z] reason text".
func StampNote(rawNote, actor string) string {
	return StampNoteAt(rawNote, actor, time.Now())
}

// StampNoteAt is StampNote with an explicit clock, used by tests.
func StampNoteAt(rawNote, actor string, at time.Time) string {
	return fmt.Sprintf("[ADMIN: %s @ %s] %s", actor, at.UTC().Format(time.RFC3339), rawNote)
}

// BuildTransactionMetadata assembles the audit payload for a credit
// transaction. Caller-supplied extra fields are carried alongside the
// fixed ones, never merged over them.
func BuildTransactionMetadata(actor, reason string, transactionType string, extra map[string]any) *TransactionMetadata {
	m := &TransactionMetadata{
		AdminUsername:   actor,
		AdminReason:     reason,
		AdjustmentType:  AdjustmentTypeManualAdmin,
		Source:          SourceAdminBoard,
		TransactionType: transactionType,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if len(extra) > 0 {
		m.Extra = make(map[string]any, len(extra))
		for k, v := range extra {
			m.Extra[k] = v
		}
	}
	return m
}
