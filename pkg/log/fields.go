package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID = "user_id"
	FieldRole   = "role"

	// Chat
	FieldSessionID   = "session_id"
	FieldMessageID   = "message_id"
	FieldCounselorID = "counselor_id"
	FieldClientID    = "client_id"
	FieldChannel     = "channel"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
