package sheets

import (
	"context"
	"encoding/json"
	"time"
)

type (
	// Record is one stored document as pushed to the remote mirror.
	// Rows are keyed by Collection + LocalID + UserID.
	Record struct {
		Collection string
		LocalID    int64
		UserID     string
		UpdatedAt  time.Time
		Data       json.RawMessage
	}

	// Mirror is the outbound port for the best-effort remote copy.
	Mirror interface {
		// Upsert writes r, replacing the row with the same key, and returns a row reference.
		Upsert(ctx context.Context, r Record) (rowRef string, err error)
		// Delete removes the row for the key. A missing row is not an error.
		Delete(ctx context.Context, collection string, localID int64, userID string) error
	}
)
