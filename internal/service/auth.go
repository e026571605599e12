// Package service holds the application logic between HTTP handlers and the
// repositories: account registration and login, book ownership rules and
// ratings.  Services depend on small store interfaces so tests can swap the
// database out.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/iliyamo/book-ratings-api/internal/model"
	"github.com/iliyamo/book-ratings-api/internal/queue"
	"github.com/iliyamo/book-ratings-api/internal/repository"
	"github.com/iliyamo/book-ratings-api/internal/utils"
)

// UserStore is the credential store.  *repository.UserRepo implements it.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

// TokenSigner issues access tokens.  *utils.TokenIssuer implements it.
type TokenSigner interface {
	Issue(userID uint64) (utils.AccessToken, error)
}

// PasswordHasher hashes and checks passwords.  utils.BcryptHasher implements it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// RegisterInput is the registration request body.
type RegisterInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRules struct {
	Name                 string `json:"name" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRules struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService registers accounts and exchanges credentials for tokens.
type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenSigner
	events EventPublisher
	log    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the auth service.  A nil events publisher drops events.
func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenSigner, events EventPublisher, log *slog.Logger) *AuthService {
	if events == nil {
		events = NopPublisher{}
	}
	return &AuthService{users: users, hasher: hasher, tokens: tokens, events: events, log: log}
}

// Register validates in, stores the user with a hashed password and issues
// a token for the new account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, utils.AccessToken, error) {
	rules := registerRules{
		Name:                 strings.TrimSpace(in.Name),
		Email:                strings.TrimSpace(in.Email),
		Password:             in.Password,
		PasswordConfirmation: in.PasswordConfirmation,
	}
	ve := check(rules)
	if !ve.Has("password") && len(rules.Password) > utils.MaxPasswordBytes {
		ve.Add("password", fmt.Sprintf("The password may not be greater than %d bytes.", utils.MaxPasswordBytes))
	}
	if !ve.Has("email") {
		taken, err := s.users.EmailTaken(ctx, rules.Email)
		if err != nil {
			return model.User{}, utils.AccessToken{}, fmt.Errorf("check email: %w", err)
		}
		if taken {
			ve.Add("email", "The email has already been taken.")
		}
	}
	if err := ve.orNil(); err != nil {
		return model.User{}, utils.AccessToken{}, err
	}

	hash, err := s.hasher.Hash(rules.Password)
	if err != nil {
		return model.User{}, utils.AccessToken{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, rules.Name, rules.Email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			taken := &ValidationError{}
			taken.Add("email", "The email has already been taken.")
			return model.User{}, utils.AccessToken{}, taken
		}
		return model.User{}, utils.AccessToken{}, fmt.Errorf("create user: %w", err)
	}
	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return model.User{}, utils.AccessToken{}, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info("user registered", "user_id", u.ID)
	s.events.Publish(ctx, queue.Event{Type: queue.UserRegistered, ActorID: u.ID, Email: u.Email})
	return u, tok, nil
}

// Login checks credentials and issues a token.  An unknown email and a wrong
// password both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (model.User, utils.AccessToken, error) {
	rules := loginRules{Email: strings.TrimSpace(in.Email), Password: in.Password}
	if err := check(rules).orNil(); err != nil {
		return model.User{}, utils.AccessToken{}, err
	}

	u, err := s.users.GetByEmail(ctx, rules.Email)
	if errors.Is(err, repository.ErrNotFound) {
		// keep response time close to the wrong-password path
		s.hasher.Verify(s.dummy(), rules.Password)
		return model.User{}, utils.AccessToken{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, utils.AccessToken{}, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Verify(u.PasswordHash, rules.Password) {
		s.log.Info("login failed", "user_id", u.ID)
		return model.User{}, utils.AccessToken{}, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return model.User{}, utils.AccessToken{}, fmt.Errorf("issue token: %w", err)
	}
	return u, tok, nil
}

// CurrentUser returns the account a verified token belongs to.
func (s *AuthService) CurrentUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}
