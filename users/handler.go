package users

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
)

// ListUsersHandler returns all registered users for the login picker.
func ListUsersHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := database.ListUsers(db)
		if err != nil {
			http.Error(w, "Failed to list users", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(users)
	}
}

// CreateUserHandler registers a new user for the login picker.
func CreateUserHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Username == "" || payload.Password == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		existing, err := database.GetUserByName(db, payload.Username)
		if err != nil {
			http.Error(w, "Failed to check username", http.StatusInternalServerError)
			return
		}
		if existing != nil {
			http.Error(w, "Username already taken", http.StatusConflict)
			return
		}
		id, err := database.CreateUser(db, payload.Username, payload.Password, payload.Role)
		if err != nil {
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}
		log.Infow("user created", "user", id, "username", payload.Username)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"userId": id})
	}
}

