package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ghostrecon/internal/core/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const searchLimit = 20

// AuthResult is returned by every registration and login path.
type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type PseudonymInput struct {
	Alias    string
	Email    string
	Phone    string
	Password string
}

// UserStores groups the repositories the identity and security flows touch.
type UserStores struct {
	Users         domain.UserRepository
	Contacts      domain.ContactRepository
	Conversations domain.ConversationRepository
	Messages      domain.MessageRepository
	Calls         domain.CallRepository
}

type UserService struct {
	log        *slog.Logger
	stores     UserStores
	tokens     *TokenService
	tx         domain.TxManager
	bcryptCost int
	now        func() time.Time
}

func NewUserService(
	log *slog.Logger,
	stores UserStores,
	tokens *TokenService,
	tx domain.TxManager,
	bcryptCost int,
) *UserService {
	if log == nil {
		log = slog.Default()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		log:        log,
		stores:     stores,
		tokens:     tokens,
		tx:         tx,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// newKeyHash returns the hex SHA-256 of 32 random bytes. It is an opaque
// marker that changes on every rotation.
func newKeyHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

func randomAlias() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "Ghost-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

func (s *UserService) issue(u *domain.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateToken(u.ID, u.Alias)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{Token: token, User: u}, nil
}

// RegisterAnonymous returns the existing identity bound to the device
// fingerprint, or creates one.
func (s *UserService) RegisterAnonymous(ctx context.Context, fingerprint, alias string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "UserService.RegisterAnonymous")
	defer span.End()
	if fingerprint == "" {
		return nil, fail(span, fmt.Errorf("%w: device_fingerprint is required", domain.ErrInvalidArgument))
	}
	existing, err := s.stores.Users.FindByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("user.existing", true))
		return s.issue(existing)
	case !errors.Is(err, domain.ErrUserNotFound):
		s.log.ErrorContext(ctx, "user - register anonymous - lookup failed", "err", err)
		return nil, fail(span, err)
	}

	if alias == "" {
		if alias, err = randomAlias(); err != nil {
			return nil, fail(span, err)
		}
	}
	keyHash, err := newKeyHash()
	if err != nil {
		return nil, fail(span, err)
	}
	u := &domain.User{
		ID:                uuid.NewString(),
		Alias:             alias,
		RegistrationType:  domain.RegistrationAnonymous,
		DeviceFingerprint: fingerprint,
		TrustLevel:        0,
		EncryptionKeyHash: keyHash,
		Settings:          domain.DefaultSecuritySettings(),
		CreatedAt:         s.now().UTC(),
	}
	if err := s.stores.Users.CreateUser(ctx, u); err != nil {
		s.log.ErrorContext(ctx, "user - register anonymous - create user failed", "err", err)
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	s.log.InfoContext(ctx, "user - register anonymous - user created", "user_id", u.ID)
	return s.issue(u)
}

func (s *UserService) RegisterPseudonym(ctx context.Context, in PseudonymInput) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "UserService.RegisterPseudonym")
	defer span.End()
	if in.Alias == "" || in.Password == "" {
		return nil, fail(span, fmt.Errorf("%w: alias and password are required", domain.ErrInvalidArgument))
	}
	if in.Email != "" {
		taken, err := s.stores.Users.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return nil, fail(span, err)
		}
		if taken {
			return nil, fail(span, domain.ErrEmailTaken)
		}
	}
	if in.Phone != "" {
		taken, err := s.stores.Users.ExistsByPhone(ctx, in.Phone)
		if err != nil {
			return nil, fail(span, err)
		}
		if taken {
			return nil, fail(span, domain.ErrPhoneTaken)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fail(span, fmt.Errorf("hash password: %w", err))
	}
	keyHash, err := newKeyHash()
	if err != nil {
		return nil, fail(span, err)
	}
	u := &domain.User{
		ID:                uuid.NewString(),
		Alias:             in.Alias,
		RegistrationType:  domain.RegistrationPseudonym,
		Email:             in.Email,
		Phone:             in.Phone,
		PasswordHash:      string(hash),
		TrustLevel:        1,
		EncryptionKeyHash: keyHash,
		Settings:          domain.DefaultSecuritySettings(),
		CreatedAt:         s.now().UTC(),
	}
	if err := s.stores.Users.CreateUser(ctx, u); err != nil {
		s.log.ErrorContext(ctx, "user - register pseudonym - create user failed", "err", err)
		return nil, fail(span, err)
	}
	s.log.InfoContext(ctx, "user - register pseudonym - user created", "user_id", u.ID)
	return s.issue(u)
}

// Login matches identifier against email, phone or device fingerprint.
// Pseudonym accounts must also present their password.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "UserService.Login")
	defer span.End()
	if identifier == "" {
		return nil, fail(span, domain.ErrInvalidCredentials)
	}
	u, err := s.stores.Users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, fail(span, domain.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fail(span, err)
	}
	if u.RegistrationType == domain.RegistrationPseudonym {
		if password == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			s.log.InfoContext(ctx, "user - login - password mismatch", "user_id", u.ID)
			return nil, fail(span, domain.ErrInvalidCredentials)
		}
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return s.issue(u)
}

func (s *UserService) Me(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Me", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	u, err := s.stores.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	return u, nil
}

// Search finds other users by alias substring.
func (s *UserService) Search(ctx context.Context, userID, q string) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Search")
	defer span.End()
	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.User{}, nil
	}
	users, err := s.stores.Users.SearchByAlias(ctx, q, userID, searchLimit)
	if err != nil {
		return nil, fail(span, err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}
