// Package bootstrap prepares a fresh database for first use.
package bootstrap

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// PasswordLength is the length of generated passwords.
const PasswordLength = 16

// EnsureAdmin creates an admin account with a generated password unless an
// active admin already exists. password is empty when nothing was created.
func EnsureAdmin(ctx context.Context, q db.Querier, email, fullName string) (password string, err error) {
	admins, err := store.ListUsers(ctx, q, model.RoleAdmin)
	if err != nil {
		return "", err
	}
	if len(admins) > 0 {
		return "", nil
	}

	password, err = GeneratePassword(PasswordLength)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	if _, err := CreateUser(ctx, q, email, fullName, "", password, model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// CreateUser validates and stores an account with a bcrypt-hashed password.
func CreateUser(ctx context.Context, q db.Querier, email, fullName, department, password, role string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if err := model.ValidateEmail(email); err != nil {
		return nil, err
	}
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if err := model.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return store.CreateUser(ctx, q, email, fullName, department, string(hash), role)
}

// GeneratePassword creates a random password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
