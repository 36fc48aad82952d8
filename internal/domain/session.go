package domain

// Session is the authenticated identity of a storefront client. The zero
// value means signed out.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (s Session) IsAuthenticated() bool {
	return s.UserID != ""
}
