package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-raffle/internal/auth"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/order"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidWhatsapp    = errors.New("invalid whatsapp number")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the persistence surface the user service needs.
type Store interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, whatsapp string) (*models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

type Service struct {
	Store  Store
	Issuer *auth.Issuer
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store Store, issuer *auth.Issuer, log *logger.Logger) *Service {
	return &Service{
		Store:  store,
		Issuer: issuer,
		logger: log,
		now:    time.Now,
	}
}

// Register creates a customer, or refreshes the name of one who already
// exists. Checkout calls this right before placing an order, so re-registering
// must never fail.
func (s *Service) Register(ctx context.Context, req models.RegisterUserRequest) (*models.User, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	whatsapp := order.NormalizeWhatsapp(req.Whatsapp)
	// +55 plus DDD plus an 8 or 9 digit number.
	if len(whatsapp) < 13 || len(whatsapp) > 14 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWhatsapp, req.Whatsapp)
	}

	existing, err := s.Store.GetUser(ctx, whatsapp)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if existing != nil {
		if existing.Name != req.Name {
			existing.Name = req.Name
			existing.UpdatedAt = s.now()
			if err := s.Store.UpdateUser(ctx, *existing); err != nil {
				return nil, fmt.Errorf("update user: %w", err)
			}
		}
		return existing, nil
	}

	user := models.User{
		Whatsapp:  whatsapp,
		Name:      req.Name,
		Roles:     []string{"customer"},
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}
	s.logger.LogSecurity("REGISTER", fmt.Sprintf("User %s registered", whatsapp))
	return &user, nil
}

// Login authenticates an admin and issues a token. Customers have no
// password and cannot log in.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	whatsapp := order.NormalizeWhatsapp(req.Whatsapp)

	user, err := s.Store.GetUser(ctx, whatsapp)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil || user.Password == "" {
		// Same error as a bad password so probes learn nothing.
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.logger.LogSecurity("LOGIN", fmt.Sprintf("Failed login attempt for %s", whatsapp))
		return nil, ErrInvalidCredentials
	}

	token, err := s.Issuer.Issue(user.Whatsapp, user.Name, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.LogSecurity("LOGIN", fmt.Sprintf("User %s logged in", whatsapp))
	resp := &models.LoginResponse{Token: token}
	resp.User.Whatsapp = user.Whatsapp
	resp.User.Name = user.Name
	resp.User.Roles = user.Roles
	return resp, nil
}

// Get returns a user by whatsapp number.
func (s *Service) Get(ctx context.Context, rawWhatsapp string) (*models.User, error) {
	user, err := s.Store.GetUser(ctx, order.NormalizeWhatsapp(rawWhatsapp))
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// List returns every active user.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.Store.ListUsers(ctx)
}

// HashPassword is used by the seed tool when provisioning admins.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
