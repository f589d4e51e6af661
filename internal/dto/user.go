package dto

// ChatUserResponse is a resolved chat identity
type ChatUserResponse struct {
	UserID   int64  `json:"user_id"`
	ScopeID  *int64 `json:"organizational_scope_id"`
	ChatRole string `json:"chat_role"`
	Name     string `json:"name"`
}

// PresenceResponse reports whether a user holds a live socket
type PresenceResponse struct {
	UserID int64 `json:"user_id"`
	Online bool  `json:"online"`
}
