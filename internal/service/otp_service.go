package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	otpDigits       = 4
	otpMailSubject  = "Your password reset code"
	defaultOTPValid = 5 * time.Minute
)

// OTPServiceImpl implements ports.OTPService. Codes are stored only as salted
// hashes; at most one code per user is outstanding.
type OTPServiceImpl struct {
	userRepo ports.UserRepository
	hashSvc  ports.HashService
	notifier ports.Notifier
	ttl      time.Duration
	now      func() time.Time
	newCode  func() (string, error)
	log      zerolog.Logger
}

// NewOTPService creates a new OTPServiceImpl. ttl is the validity window used
// both for enforcement and in the notification text.
func NewOTPService(
	userRepo ports.UserRepository,
	hashSvc ports.HashService,
	notifier ports.Notifier,
	ttl time.Duration,
	log zerolog.Logger,
) *OTPServiceImpl {
	if ttl <= 0 {
		ttl = defaultOTPValid
	}
	return &OTPServiceImpl{
		userRepo: userRepo,
		hashSvc:  hashSvc,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
		newCode:  generateOTP,
		log:      log,
	}
}

// Issue replaces any outstanding code for the user registered under email and
// queues the plaintext for delivery. Delivery problems never fail Issue.
func (s *OTPServiceImpl) Issue(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return apperror.ErrNotFound("user")
	}

	code, err := s.newCode()
	if err != nil {
		return apperror.InternalError(fmt.Errorf("generate otp: %w", err))
	}
	hash, err := s.hashSvc.Hash(code)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash otp: %w", err))
	}

	issuedAt := s.now().UTC()
	if err := s.userRepo.SetOTP(ctx, user.ID, hash, issuedAt); err != nil {
		return apperror.InternalError(fmt.Errorf("store otp: %w", err))
	}

	s.notifier.Notify(ctx, domain.Notification{
		Recipient: user.Email,
		Subject:   otpMailSubject,
		Body:      s.mailBody(user, code),
		CreatedAt: issuedAt,
	})

	s.log.Info().Str("user_id", user.ID.String()).Msg("otp issued")
	return nil
}

// Verify checks code against the user's outstanding OTP and consumes it.
func (s *OTPServiceImpl) Verify(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return apperror.ErrNotFound("user")
	}

	if err := s.check(user, code); err != nil {
		return err
	}

	consumed, err := s.userRepo.ConsumeOTP(ctx, user.ID, user.OTP.Hash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("consume otp: %w", err))
	}
	if !consumed {
		// another request used or replaced the code first
		return apperror.ErrNoOTPOutstanding()
	}
	return nil
}

// ResetPassword verifies code and, in the same statement that consumes it,
// stores the new password hash.
func (s *OTPServiceImpl) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return apperror.ErrNoOTPOutstanding()
	}

	if err := s.check(user, code); err != nil {
		return err
	}

	passwordHash, err := s.hashSvc.Hash(newPassword)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	consumed, err := s.userRepo.ConsumeOTPAndSetPassword(ctx, user.ID, user.OTP.Hash, passwordHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("reset password: %w", err))
	}
	if !consumed {
		return apperror.ErrNoOTPOutstanding()
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("password reset with otp")
	return nil
}

// check applies the rejection order: nothing outstanding, wrong code, expired.
func (s *OTPServiceImpl) check(user *domain.User, code string) error {
	state := user.OTPState(s.now(), s.ttl)
	if state == domain.OTPStateNone {
		return apperror.ErrNoOTPOutstanding()
	}

	match, err := s.hashSvc.Verify(code, user.OTP.Hash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify otp: %w", err))
	}
	if !match {
		s.log.Debug().Str("user_id", user.ID.String()).Msg("otp mismatch")
		return apperror.ErrInvalidOTP()
	}

	if state == domain.OTPStateExpired {
		return apperror.ErrOTPExpired()
	}
	return nil
}

func (s *OTPServiceImpl) mailBody(user *domain.User, code string) string {
	name := user.FullName()
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hello %s,\n\nYour password reset code is %s. It is valid for %s.\nIf you did not ask for a reset, ignore this message.\n",
		name, code, humanDuration(s.ttl),
	)
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0 && d >= time.Hour:
		return plural(int64(d/time.Hour), "hour")
	case d%time.Minute == 0 && d >= time.Minute:
		return plural(int64(d/time.Minute), "minute")
	}
	return d.String()
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// generateOTP draws a uniformly distributed zero-padded decimal code.
func generateOTP() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
