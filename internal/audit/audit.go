package audit

import (
	"context"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
)

// Audit actions for the chat service.
const (
	ActionSessionRequested = "session.requested"
	ActionSessionAccepted  = "session.accepted"
	ActionSessionDeclined  = "session.declined"
	ActionSessionResolved  = "session.resolved"
	ActionSessionRated     = "session.rated"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, sessionID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldSessionID, sessionID).
		Msg(msg)
}
