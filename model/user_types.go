package model

// User is recorded for audit only; authentication is handled by the login
// collaborator, the engine never checks credentials.
type User struct {
	UserID   int64  `db:"user_id" json:"userId"`
	Username string `db:"username" json:"username"`
	Role     string `db:"role" json:"role"`
}
