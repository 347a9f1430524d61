package database

import (
	"context"
	"fmt"
)

// AuditEvent is one row of the moderation audit trail.
type AuditEvent struct {
	Actor     string
	Action    string
	ReportSeq int64
	Details   string
	RequestID string
}

// InsertAuditEvent appends an audit row (best-effort). Callers treat failures
// as non-fatal; the primary operation must not depend on this log.
func (d *Database) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	var reportSeq interface{}
	if ev.ReportSeq != 0 {
		reportSeq = ev.ReportSeq
	}
	_, err := d.db.ExecContext(ctx, `INSERT
		INTO audit_events (actor, action, report_seq, details, request_id)
		VALUES (?, ?, ?, ?, ?)`,
		nullableStr(ev.Actor), ev.Action, reportSeq,
		nullableStr(ev.Details), nullableStr(ev.RequestID))
	if err != nil {
		return fmt.Errorf("insert audit_events: %w", err)
	}
	return nil
}
