package postgres

import (
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// CreateUser creates a new user with hashed password
func (p *PostgresDB) CreateUser(name, email, password string) (*db.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := db.User{
		ID:    uuid.New().String(),
		Name:  name,
		Email: email,
	}

	query := `
	INSERT INTO users (id, name, email, password_hash)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at
	`

	err = p.conn.QueryRow(query, user.ID, name, email, string(hashedPassword)).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, db.ErrEmailTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": user.ID}).Info("Created new user")

	return &user, nil
}

const userColumns = `id, name, email, password_hash, api_key, created_at`

func (p *PostgresDB) getUser(where string, arg string) (*db.User, error) {
	var user db.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	err := p.conn.QueryRow(query, arg).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.APIKey, &user.CreatedAt)
	if err != nil {
		if err = notFound(err); err == db.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (p *PostgresDB) GetUserByEmail(email string) (*db.User, error) {
	return p.getUser("email = $1", email)
}

// GetUserByID retrieves a user by id
func (p *PostgresDB) GetUserByID(id string) (*db.User, error) {
	if !validID(id) {
		return nil, db.ErrNotFound
	}
	return p.getUser("id = $1", id)
}

// UpdateUserAPIKey stores or clears the provider API key of a user
func (p *PostgresDB) UpdateUserAPIKey(userID string, apiKey *string) error {
	if !validID(userID) {
		return db.ErrNotFound
	}

	res, err := p.conn.Exec(`UPDATE users SET api_key = $1 WHERE id = $2`, apiKey, userID)
	if err != nil {
		return fmt.Errorf("error updating api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.ErrNotFound
	}
	return nil
}
