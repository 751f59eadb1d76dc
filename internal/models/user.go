package models

// User is the authenticated identity for the current session. It is
// held only in memory and discarded on logout.
type User struct {
	ID       uint64
	Username string
	Email    string
}
