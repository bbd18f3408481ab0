package database

import (
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"rtracker/model"
)

// ListUsers returns all registered users for the login picker.
func ListUsers(q DBTX) ([]model.User, error) {
	var users []model.User
	err := q.Select(&users, `
		SELECT user_id, username, role FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateUser registers a user and returns the new user id. The password
// is stored as a bcrypt hash for the login collaborator; nothing in this
// system ever verifies it.
func CreateUser(q DBTX, username, password, role string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}
	if role == "" {
		role = "shipper"
	}
	res, err := q.Exec(`
		INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, string(hash), role)
	if err != nil {
		return 0, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get new user id: %w", err)
	}
	return id, nil
}

// GetUserByName returns one user by username, or nil when absent.
func GetUserByName(q DBTX, username string) (*model.User, error) {
	var u model.User
	err := q.Get(&u, `
		SELECT user_id, username, role FROM users WHERE username = ?`, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", username, err)
	}
	return &u, nil
}
