package util

import (
	"fmt"
	"time"
)

// RefCode builds the human-facing reference of a question, e.g.
// "AGO-QUE-2026-42". The numeric tail is the row id, so the reference
// survives title edits and component moves.
func RefCode(orgPrefix string, created time.Time, questionID int64) string {
	if orgPrefix == "" {
		orgPrefix = "AGO"
	}
	return fmt.Sprintf("%s-QUE-%d-%d", orgPrefix, created.Year(), questionID)
}
