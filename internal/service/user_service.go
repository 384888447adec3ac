package service

import (
	"context"
	"strings"

	"ripple/internal/auth"
	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// UserService handles accounts and sessions.
type UserService struct {
	store    *repository.Store
	resolver *auth.Resolver
	cost     int
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Login    string
	Password string
}

// Session is an issued access token with its user.
type Session struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      *models.User `json:"user"`
}

func NewUserService(store *repository.Store, resolver *auth.Resolver) *UserService {
	return &UserService{store: store, resolver: resolver, cost: bcrypt.DefaultCost}
}

// WithHashCost returns a copy using the given bcrypt cost.
func (s *UserService) WithHashCost(cost int) *UserService {
	cp := *s
	cp.cost = cost
	return &cp
}

// Signup creates the account and opens a session for it.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.store.Users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username already exists")
	}
	existing, err = s.store.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hashed),
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login verifies the password and opens a session. Unknown accounts and wrong
// passwords fail the same way.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	login := strings.TrimSpace(in.Login)
	if login == "" || in.Password == "" {
		return nil, models.NewValidationError("Login and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.store.Users.GetByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = s.store.Users.GetByUsername(ctx, login)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Incorrect username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Incorrect username or password")
	}
	return s.issue(user)
}

// Logout revokes the token described by claims.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := s.resolver.Revoke(ctx, claims); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.store.Users.GetByID(ctx, id)
}

func (s *UserService) issue(user *models.User) (*Session, error) {
	token, _, err := s.resolver.Tokens().Issue(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, TokenType: "bearer", User: user}, nil
}
