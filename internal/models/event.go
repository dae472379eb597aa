package models

const (
	EventSessionLoggedOut    = "session.logged_out"
	EventAnnouncementCreated = "announcement.created"
	EventAnnouncementUpdated = "announcement.updated"
	EventAnnouncementDeleted = "announcement.deleted"
)

type SessionLoggedOutEvent struct {
	UserID    int64  `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type AnnouncementEvent struct {
	AnnouncementID string `json:"announcement_id"`
	Title          string `json:"title,omitempty"`
	Category       string `json:"category,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}
