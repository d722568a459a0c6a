package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/nithin1018/Village-Banking-App/config"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc         *AuthServiceImpl
	userRepo    *mocks.MockUserRepository
	accountRepo *mocks.MockAccountRepository
	transactor  *mocks.MockDBTransactor
	hashSvc     *mocks.MockHashService
	tokenSvc    *mocks.MockTokenService
	ctrl        *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo:    mocks.NewMockUserRepository(ctrl),
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		hashSvc:     mocks.NewMockHashService(ctrl),
		tokenSvc:    mocks.NewMockTokenService(ctrl),
		ctrl:        ctrl,
	}
	allocator := NewAccountNumberAllocator(config.LedgerConfig{
		AccountNumberMin: 100000, AccountNumberMax: 999999, MaxAllocationAttempts: 32,
	}, newTestLogger())
	d.svc = NewAuthService(d.userRepo, d.accountRepo, d.transactor, allocator, d.hashSvc, d.tokenSvc, newTestLogger())
	return d
}

// ==================== Register ====================

func TestAuthService_Register_UserGetsAccount(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	req := ports.RegisterRequest{
		Email:     "  Ada@Example.COM ",
		Password:  "S3cure-pass",
		FirstName: "Ada",
	}

	d.hashSvc.EXPECT().Hash(req.Password).Return("$argon2id$hashed", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)

	var created domain.User
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, u *domain.User) error {
			created = *u
			return nil
		},
	)
	var account domain.Account
	d.accountRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, a *domain.Account) error {
			a.ID = 1
			account = *a
			return nil
		},
	)

	resp, err := d.svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, resp.Role)
	assert.Equal(t, created.ID, resp.UserID)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, "$argon2id$hashed", created.PasswordHash)

	assert.Equal(t, created.ID, account.UserID)
	assert.Equal(t, resp.AccountNumber, account.AccountNumber)
	assert.True(t, account.Balance.IsZero())
	n, err := strconv.Atoi(resp.AccountNumber)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 100000)
	assert.True(t, tx.committed)
}

func TestAuthService_Register_StaffHasNoAccount(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hash", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, u *domain.User) error {
			assert.Equal(t, "EMP-7", u.EmployeeID)
			return nil
		},
	)
	// accountRepo.Create must not be called

	resp, err := d.svc.Register(ctx, ports.RegisterRequest{
		Email: "teller@bank.test", Password: "pw-123456", Role: domain.RoleStaff, EmployeeID: "EMP-7",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, resp.Role)
	assert.Empty(t, resp.AccountNumber)
	assert.True(t, tx.committed)
}

func TestAuthService_Register_PrivilegedRoleNeedsEmployeeID(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleStaff, domain.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			d := setupAuthService(t)
			defer d.ctrl.Finish()
			// nothing is hashed or stored

			resp, err := d.svc.Register(context.Background(), ports.RegisterRequest{
				Email: "boss@bank.test", Password: "pw-123456", Role: role,
			})
			assert.Nil(t, resp)
			assertAppError(t, err, "AUTH_006")
		})
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hash", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(domain.ErrDuplicateEmail)

	resp, err := d.svc.Register(ctx, ports.RegisterRequest{Email: "dup@bank.test", Password: "pw-123456"})
	assert.Nil(t, resp)
	assertAppError(t, err, "AUTH_002")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestAuthService_Register_InvalidRole(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Register(context.Background(), ports.RegisterRequest{
		Email: "x@bank.test", Password: "pw-123456", Role: domain.Role("superuser"),
	})
	assertAppError(t, err, "AUTH_005")
}

func TestAuthService_Register_AccountProvisioningFails(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hash", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.accountRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(errors.New("connection lost"))

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Email: "y@bank.test", Password: "pw-123456"})
	assertAppError(t, err, "SYS_001")
	assert.False(t, tx.committed, "identity must not be committed without its account")
}

// ==================== Login ====================

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "stored", Role: domain.RoleUser}
	expiry := time.Now().Add(time.Hour)

	d.userRepo.EXPECT().GetByEmail(ctx, "ada@example.com").Return(user, nil)
	d.hashSvc.EXPECT().Verify("pw", "stored").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(user.ID, domain.RoleUser).Return("jwt", expiry, nil)

	token, exp, err := d.svc.Login(ctx, "ADA@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)
	assert.Equal(t, expiry, exp)
}

func TestAuthService_Login_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *authTestDeps)
	}{
		{
			name: "unknown email",
			setup: func(d *authTestDeps) {
				d.userRepo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, nil)
			},
		},
		{
			name: "wrong password",
			setup: func(d *authTestDeps) {
				d.userRepo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(&domain.User{PasswordHash: "h"}, nil)
				d.hashSvc.EXPECT().Verify("pw", "h").Return(false, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupAuthService(t)
			defer d.ctrl.Finish()
			tt.setup(d)

			_, _, err := d.svc.Login(context.Background(), "someone@bank.test", "pw")
			assertAppError(t, err, "AUTH_001")
		})
	}
}

// ==================== ChangePassword ====================

func TestAuthService_ChangePassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), PasswordHash: "old-hash"}

	d.userRepo.EXPECT().GetByID(ctx, user.ID).Return(user, nil)
	d.hashSvc.EXPECT().Verify("old", "old-hash").Return(true, nil)
	d.hashSvc.EXPECT().Hash("new-password").Return("new-hash", nil)
	d.userRepo.EXPECT().UpdatePassword(ctx, user.ID, "new-hash").Return(nil)

	require.NoError(t, d.svc.ChangePassword(ctx, user.ID, "old", "new-password"))
}

func TestAuthService_ChangePassword_WrongCurrent(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), PasswordHash: "old-hash"}

	d.userRepo.EXPECT().GetByID(ctx, user.ID).Return(user, nil)
	d.hashSvc.EXPECT().Verify("guess", "old-hash").Return(false, nil)

	err := d.svc.ChangePassword(ctx, user.ID, "guess", "new-password")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_ChangePassword_UnknownUser(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.userRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	err := d.svc.ChangePassword(ctx, id, "a", "b")
	assertAppError(t, err, "NOT_001")
}
