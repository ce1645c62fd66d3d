// Package access holds the one authorization predicate for session scoped
// actions. The websocket gateway and the HTTP API both call it, so the two
// transports can never drift apart on who may touch a session.
package access

import (
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

// CanAccess reports whether the identity may join, send to, or read the
// session. A participant must be the session's user; a counselor must own the
// session through their counselor profile.
func CanAccess(ident domain.Identity, session *domain.Session) bool {
	switch ident.Role {
	case domain.RoleUser:
		return ident.UserID == session.UserID
	case domain.RoleCounselor:
		return ident.CounselorID != "" && ident.CounselorID == session.CounselorID
	default:
		return false
	}
}

// Check is CanAccess returning domain.ErrAccessDenied instead of false.
func Check(ident domain.Identity, session *domain.Session) error {
	if !CanAccess(ident, session) {
		return domain.ErrAccessDenied
	}
	return nil
}
