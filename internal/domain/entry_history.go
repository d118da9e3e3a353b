package domain

import (
	"strconv"
	"time"
)

type EntryHistory struct {
	ID           int64
	EntryID      int64
	FieldName    string
	OldValue     string
	NewValue     string
	ChangeReason string
	ChangedAt    time.Time
}

// FieldInvoiceID is the history field name used for claim/release records
const FieldInvoiceID = "invoice_id"

// NewEntryHistory creates a history record for a field change
func NewEntryHistory(entryID int64, fieldName, oldValue, newValue, reason string) *EntryHistory {
	return &EntryHistory{
		EntryID:      entryID,
		FieldName:    fieldName,
		OldValue:     oldValue,
		NewValue:     newValue,
		ChangeReason: reason,
		ChangedAt:    time.Now(),
	}
}

// NewLinkHistory records an entry moving between invoices. A nil id means
// unlinked.
func NewLinkHistory(entryID int64, from, to *int64, reason string) *EntryHistory {
	return NewEntryHistory(entryID, FieldInvoiceID, formatInvoiceRef(from), formatInvoiceRef(to), reason)
}

func formatInvoiceRef(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
