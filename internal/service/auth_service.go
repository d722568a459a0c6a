package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo    ports.UserRepository
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	allocator   *AccountNumberAllocator
	hashSvc     ports.HashService
	tokenSvc    ports.TokenService
	log         zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	allocator *AccountNumberAllocator,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		allocator:   allocator,
		hashSvc:     hashSvc,
		tokenSvc:    tokenSvc,
		log:         log,
	}
}

// Register creates the identity and, for roles that hold an account, a
// zero-balance account with a freshly allocated number in the same transaction.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if _, ok := domain.ParseRole(string(role)); !ok {
		return nil, apperror.ErrInvalidRole(string(role))
	}
	if !role.HoldsAccount() && req.EmployeeID == "" {
		return nil, apperror.ErrEmployeeIDRequired()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(req.Email),
		PhoneNumber:  req.PhoneNumber,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: passwordHash,
		Role:         role,
		EmployeeID:   req.EmployeeID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	resp := &ports.RegisterResponse{UserID: user.ID, Role: role}

	if role.HoldsAccount() {
		number, err := s.allocator.Allocate(ctx, func(ctx context.Context, number string) error {
			return s.accountRepo.Create(ctx, dbTx, &domain.Account{
				UserID:        user.ID,
				AccountNumber: number,
				Balance:       decimal.Zero,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		})
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return nil, appErr
			}
			return nil, apperror.InternalError(fmt.Errorf("provision account: %w", err))
		}
		resp.AccountNumber = number
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("role", string(role)).
		Bool("account", resp.AccountNumber != "").
		Msg("user registered")

	return resp, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(user.ID, user.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return apperror.ErrNotFound("user")
	}

	valid, err := s.hashSvc.Verify(current, user.PasswordHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return apperror.ErrInvalidCredentials()
	}

	hash, err := s.hashSvc.Hash(next)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return apperror.InternalError(fmt.Errorf("update password: %w", err))
	}

	s.log.Info().Str("user_id", userID.String()).Msg("password changed")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
