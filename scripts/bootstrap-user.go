// Command bootstrap-user seeds an account directly in the database,
// bypassing email activation. Intended for provisioning an initial
// operator account in fresh environments.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/repository"
)

type output struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "", "Email for the new account")
		password    = flag.String("password", "", "Password for the new account")
		activate    = flag.Bool("activate", true, "Mark the account active immediately")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "-email and -password are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	user, err := bootstrapUser(ctx, repo, *email, *password, *activate)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	result := output{
		UserID:   user.ID,
		Email:    user.Email,
		IsActive: user.IsActive,
	}

	switch *format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			fmt.Fprintln(os.Stderr, "encode output:", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("user_id:   %d\n", result.UserID)
		fmt.Printf("email:     %s\n", result.Email)
		fmt.Printf("is_active: %t\n", result.IsActive)
	}
}

func bootstrapUser(ctx context.Context, repo *repository.Repository, email, password string, activate bool) (*model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
	}
	token := &model.ActivationToken{
		Token:     auth.NewActivationToken(),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}

	if err := repo.CreateUser(ctx, user, token); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, fmt.Errorf("account %s already exists", email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if activate {
		if err := repo.ConsumeActivationToken(ctx, token.Token, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("activate account: %w", err)
		}
		user.IsActive = true
	}

	return user, nil
}
