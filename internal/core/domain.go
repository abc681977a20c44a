package core

import (
	"errors"
	"strings"
	"time"
)

const (
	SyncLocal   SyncState = "local"
	SyncPending SyncState = "pending"
	SyncSynced  SyncState = "synced"
	SyncError   SyncState = "error"
)

type (
	// SyncState tracks whether a record's remote mirror is up to date.
	SyncState string

	// Record holds the storage-assigned metadata shared by every entity.
	// The fields are owned by the store and never serialized into the document body.
	Record struct {
		ID        int64     `json:"-"`
		SyncState SyncState `json:"-"`
		UpdatedAt time.Time `json:"-"`
	}
)

// Meta exposes the record metadata so storage can fill it after decoding.
func (r *Record) Meta() *Record {
	return r
}

func (r *Record) markPending() {
	r.SyncState = SyncPending
}

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAlreadySettled     = errors.New("debt is already settled")
	ErrDebtAlreadySettled = errors.New("linked debt is already settled")
	ErrMissingReason      = errors.New("withdrawal requires a reason")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrProtected          = errors.New("fund is protected and does not allow withdrawals")
	ErrNotFound           = errors.New("not found")
	ErrDebtNotFound       = errors.New("linked debt no longer exists")
	ErrNotLinked          = errors.New("goal is not linked to a debt")
	ErrAlreadyApplied     = errors.New("goal was already applied to its debt")
	ErrNotCompleted       = errors.New("goal is not completed")
	ErrValidationFailed   = errors.New("validation failed")
	ErrIndexOutOfRange    = errors.New("entry not found")
	ErrInUse              = errors.New("record is still referenced")
	ErrLoanOverpayment    = errors.New("repayment exceeds pending loan")
	ErrNoPendingLoan      = errors.New("fund has no pending loan")
	ErrEmptyName          = errors.New("empty name")
)

// ValidationError lists every field problem found on an entity.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, ", ")
}

// Is makes errors.Is(err, ErrValidationFailed) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

type problems []string

func (p *problems) add(msg string) {
	*p = append(*p, msg)
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}

const day = 24 * time.Hour

// daysUntil returns the whole days left until due, rounding up like a calendar countdown.
func daysUntil(due, now time.Time) int {
	diff := due.Sub(now)
	days := int(diff / day)
	if diff%day > 0 {
		days++
	}
	return days
}

// daysSince returns the whole days elapsed since start, never negative.
func daysSince(start, now time.Time) int {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return int(now.Sub(start) / day)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
