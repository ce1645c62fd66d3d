package domain

// Roles a verified connection or request can act under.
const (
	RoleUser      = "user"
	RoleCounselor = "counselor"
)

// Identity is a verified actor bound to a connection or request.
// CounselorID is the counselor profile id and is set only for counselors.
type Identity struct {
	UserID      string
	Role        string
	CounselorID string
}

// IsCounselor reports whether the identity acts as a counselor.
func (i Identity) IsCounselor() bool {
	return i.Role == RoleCounselor
}
