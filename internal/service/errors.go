package service

import "errors"

var (
	ErrEntryNotFound       = errors.New("time entry not found")
	ErrEntryAlreadyLinked  = errors.New("entry is already linked to another invoice")
	ErrEntryClientMismatch = errors.New("entry belongs to a different client")
	ErrEntryNotOnInvoice   = errors.New("entry is not linked to this invoice")
	ErrClientArchived      = errors.New("client is archived")
	ErrNotRegenerated      = errors.New("invoice created but its totals were not regenerated")
)
