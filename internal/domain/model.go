package domain

import "time"

// SessionModel is the GORM model for the sessions table.
type SessionModel struct {
	ID            string     `gorm:"type:varchar(36);primaryKey"`
	UserID        string     `gorm:"type:varchar(36);index:idx_sessions_pair;not null"`
	CounselorID   string     `gorm:"type:varchar(36);index:idx_sessions_pair;index;not null"`
	Status        string     `gorm:"type:varchar(16);index;not null"`
	LastMessageID *string    `gorm:"type:varchar(36)"`
	LastMessageAt *time.Time ``
	LastSeq       int64      `gorm:"not null;default:0"`
	ResolvedAt    *time.Time ``
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

// ToDomain converts SessionModel to domain Session.
func (m *SessionModel) ToDomain() *Session {
	s := &Session{
		ID:            m.ID,
		UserID:        m.UserID,
		CounselorID:   m.CounselorID,
		Status:        SessionStatus(m.Status),
		LastMessageAt: m.LastMessageAt,
		LastSeq:       m.LastSeq,
		ResolvedAt:    m.ResolvedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.LastMessageID != nil {
		s.LastMessageID = *m.LastMessageID
	}
	return s
}

// SessionToModel converts domain Session to SessionModel.
func SessionToModel(s *Session) *SessionModel {
	m := &SessionModel{
		ID:            s.ID,
		UserID:        s.UserID,
		CounselorID:   s.CounselorID,
		Status:        string(s.Status),
		LastMessageAt: s.LastMessageAt,
		LastSeq:       s.LastSeq,
		ResolvedAt:    s.ResolvedAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.LastMessageID != "" {
		id := s.LastMessageID
		m.LastMessageID = &id
	}
	return m
}

// MessageModel is the GORM model for the messages table. The unique index on
// (session_id, seq) backs the per-session ordering invariant.
type MessageModel struct {
	ID        string     `gorm:"type:varchar(36);primaryKey"`
	SessionID string     `gorm:"type:varchar(36);uniqueIndex:idx_messages_session_seq;not null"`
	SenderID  string     `gorm:"type:varchar(36);index;not null"`
	Content   string     `gorm:"type:text;not null"`
	Seq       int64      `gorm:"uniqueIndex:idx_messages_session_seq;not null"`
	IsRead    bool       `gorm:"not null;default:false"`
	ReadAt    *time.Time ``
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Seq:       m.Seq,
		IsRead:    m.IsRead,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}

func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Seq:       msg.Seq,
		IsRead:    msg.IsRead,
		ReadAt:    msg.ReadAt,
		CreatedAt: msg.CreatedAt,
	}
}

// CounselorModel is the GORM model for the counselors table.
type CounselorModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	UserID         string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	Specialization string    `gorm:"type:varchar(255)"`
	Bio            string    `gorm:"type:text"`
	IsAvailable    bool      `gorm:"not null;default:true"`
	ActiveSessions int       `gorm:"not null;default:0"`
	TotalResolved  int64     `gorm:"not null;default:0"`
	RatingAverage  float64   `gorm:"not null;default:0"`
	RatingCount    int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (CounselorModel) TableName() string {
	return "counselors"
}

func (m *CounselorModel) ToDomain() *Counselor {
	return &Counselor{
		ID:             m.ID,
		UserID:         m.UserID,
		Specialization: m.Specialization,
		Bio:            m.Bio,
		IsAvailable:    m.IsAvailable,
		ActiveSessions: m.ActiveSessions,
		TotalResolved:  m.TotalResolved,
		RatingAverage:  m.RatingAverage,
		RatingCount:    m.RatingCount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// RatingModel is the GORM model for the ratings table. The unique index on
// session_id enforces one rating per session.
type RatingModel struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	SessionID   string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	UserID      string    `gorm:"type:varchar(36);index;not null"`
	CounselorID string    `gorm:"type:varchar(36);index;not null"`
	Value       int       `gorm:"not null"`
	Comment     string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (RatingModel) TableName() string {
	return "ratings"
}

func (m *RatingModel) ToDomain() *Rating {
	return &Rating{
		ID:          m.ID,
		SessionID:   m.SessionID,
		UserID:      m.UserID,
		CounselorID: m.CounselorID,
		Value:       m.Value,
		Comment:     m.Comment,
		CreatedAt:   m.CreatedAt,
	}
}

func RatingToModel(r *Rating) *RatingModel {
	return &RatingModel{
		ID:          r.ID,
		SessionID:   r.SessionID,
		UserID:      r.UserID,
		CounselorID: r.CounselorID,
		Value:       r.Value,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
	}
}
