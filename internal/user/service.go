package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nekogravitycat/record-console/internal/auth"
	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/console"
	"github.com/nekogravitycat/record-console/internal/record"
	"github.com/nekogravitycat/record-console/internal/role"
	"github.com/nekogravitycat/record-console/internal/session"
)

// Service defines account logic: authentication, password self-service and
// account creation.
type Service interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Logout(sessionID string) error
	Me(ctx context.Context, sess *session.Session) (Account, error)
	ChangePassword(ctx context.Context, sess *session.Session, current, next string) error
	CreateAccount(ctx context.Context, sess *session.Session, in NewAccount) (record.Row, error)
	BootstrapManager(ctx context.Context, in NewAccount) (Account, error)
}

type service struct {
	repo     Repository
	hasher   auth.PasswordHasher
	sessions *session.Registry
	console  *console.Service
	log      *zap.Logger

	minPasswordLength int
}

// NewService creates a new user Service.
func NewService(
	repo Repository,
	hasher auth.PasswordHasher,
	sessions *session.Registry,
	consoleService *console.Service,
	minPasswordLength int,
	log *zap.Logger,
) Service {
	if log == nil {
		log = zap.NewNop()
	}
	if minPasswordLength <= 0 {
		minPasswordLength = 8
	}
	return &service{
		repo:              repo,
		hasher:            hasher,
		sessions:          sessions,
		console:           consoleService,
		log:               log,
		minPasswordLength: minPasswordLength,
	}
}

func (s *service) Login(ctx context.Context, username, password string) (*session.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	a, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to fetch user by username: %w", err)
	}

	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.log.Warn("stored password hash is unusable", zap.String("username", username), zap.Error(err))
		}
		s.log.Info("login rejected", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Start(a.ID, a.Username, a.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return sess, nil
}

func (s *service) Logout(sessionID string) error {
	return s.sessions.End(sessionID)
}

func (s *service) Me(ctx context.Context, sess *session.Session) (Account, error) {
	return s.repo.GetByID(ctx, sess.UserID)
}

func (s *service) ChangePassword(ctx context.Context, sess *session.Session, current, next string) error {
	if !sess.Capabilities().ChangeOwnPassword {
		return fmt.Errorf("%w: %s may not change passwords", console.ErrForbidden, sess.Role)
	}

	a, err := s.repo.GetByID(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(a.PasswordHash, current); err != nil {
		return ErrWrongPassword
	}

	hash, err := s.hashPassword(next)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, a.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.log.Info("password changed", zap.String("username", a.Username))
	return nil
}

// CreateAccount adds a users record on behalf of a session allowed to mutate
// users. The insert goes through the console so it can be undone.
func (s *service) CreateAccount(ctx context.Context, sess *session.Session, in NewAccount) (record.Row, error) {
	if !sess.Capabilities().CanMutate(catalog.Users) {
		return record.Row{}, fmt.Errorf("%w: %s may not create accounts", console.ErrForbidden, sess.Role)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return record.Row{}, err
	}

	row, err := s.console.CreateWithSecrets(ctx, sess, catalog.Users, in.fields(hash))
	if errors.Is(err, record.ErrConflict) {
		return record.Row{}, ErrUsernameTaken
	}
	return row, err
}

// BootstrapManager creates the first Manager account. It refuses once any
// Manager exists.
func (s *service) BootstrapManager(ctx context.Context, in NewAccount) (Account, error) {
	n, err := s.repo.CountByRole(ctx, string(role.Manager))
	if err != nil {
		return Account{}, fmt.Errorf("failed to count managers: %w", err)
	}
	if n > 0 {
		return Account{}, ErrManagerExists
	}

	in.Role = string(role.Manager)
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return Account{}, err
	}

	fields := in.fields(hash)
	all, err := s.console.Catalog().Fields(catalog.Users)
	if err != nil {
		return Account{}, err
	}
	for _, f := range all {
		v, err := f.Normalize(fields[f.Name])
		if err != nil {
			return Account{}, err
		}
		fields[f.Name] = v
	}

	id, err := s.repo.Create(ctx, fields)
	if err != nil {
		return Account{}, err
	}

	s.log.Info("manager account bootstrapped", zap.String("username", fields["username"]), zap.Int64("id", id))
	return s.repo.GetByID(ctx, id)
}

func (s *service) hashPassword(plain string) (string, error) {
	if len(plain) < s.minPasswordLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, s.minPasswordLength)
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}
