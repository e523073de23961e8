package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/carelink-api/internal/email"
	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository/memory"
	"github.com/jwalitptl/carelink-api/pkg/auth"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/security"
)

var otpPattern = regexp.MustCompile(`letter-spacing: 5px;">(\d{6})<`)

type fakeMailer struct {
	sent []email.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *fakeMailer) lastOTP(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.sent)
	match := otpPattern.FindStringSubmatch(m.sent[len(m.sent)-1].HTML)
	require.Len(t, match, 2)
	return match[1]
}

type fixture struct {
	store  *memory.Store
	mailer *fakeMailer
	jwt    auth.JWTService
	hasher security.PasswordHasher
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	hasher := security.NewBcryptHasher(4)
	f := &fixture{
		store:  store,
		mailer: &fakeMailer{},
		jwt:    auth.NewJWTService("test-secret", time.Hour),
		hasher: hasher,
	}
	f.svc = NewService(store.Providers(), store.Patients(), store.Admins(), store.Registrar(),
		f.jwt, hasher, hasher, f.mailer, logger.Nop())
	return f
}

func (f *fixture) addProvider(t *testing.T, et model.EntityType, emailAddr string, status model.ProviderStatus) *model.Provider {
	t.Helper()
	hash, err := f.hasher.Hash("Secret#123")
	require.NoError(t, err)
	p := &model.Provider{
		Base:         model.Base{ID: uuid.New()},
		EntityType:   et,
		Name:         "Sunrise",
		Email:        emailAddr,
		PasswordHash: hash,
		Status:       status,
	}
	require.NoError(t, f.store.Registrar().RegisterProvider(context.Background(), p))
	return p
}

func (f *fixture) addPatient(t *testing.T) *model.Patient {
	t.Helper()
	p, err := f.svc.RegisterPatient(context.Background(), RegisterPatientInput{
		Name:     "Asha",
		Phone:    "9876543210",
		Email:    "Asha@Example.com",
		Password: "Secret#123",
	})
	require.NoError(t, err)
	return p
}

func TestLoginPendingProviderForbidden(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, model.EntityClinic, "sunrise@example.com", model.ProviderStatusPending)

	_, err := f.svc.Login(context.Background(), LoginInput{
		Email: "sunrise@example.com", Password: "Secret#123",
		Role: model.RoleProvider, EntityType: model.EntityClinic,
	})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
	assert.Equal(t, "Clinic status is 'pending'. Wait for admin approval.", appErr.Message)
}

func TestLoginApprovedProviderIssuesToken(t *testing.T) {
	f := newFixture(t)
	p := f.addProvider(t, model.EntityLaboratory, "lab@example.com", model.ProviderStatusApproved)

	session, err := f.svc.Login(context.Background(), LoginInput{
		Email: "lab@example.com", Password: "Secret#123",
		Role: model.RoleProvider, EntityType: model.EntityLaboratory,
	})
	require.NoError(t, err)

	claims, err := f.jwt.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), claims.ID)
	assert.Equal(t, 400, claims.Role)
	assert.Equal(t, "lab", claims.EntityType)
	assert.Equal(t, model.EntityLaboratory, session.Account.EntityType)
}

func TestLoginErrors(t *testing.T) {
	f := newFixture(t)
	f.addPatient(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "x", Role: model.RolePatient})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "wrong", Role: model.RolePatient})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "Secret#123", Role: model.RoleAdmin})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "Secret#123", Role: model.RoleProvider})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	session, err := f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "Secret#123", Role: model.RolePatient})
	require.NoError(t, err)
	assert.Empty(t, session.Account.EntityType)
}

func TestRegisterPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addPatient(t)
	assert.Equal(t, "asha@example.com", p.Email)

	_, err := f.svc.RegisterPatient(ctx, RegisterPatientInput{Name: "A", Phone: "9876543210", Email: "other@example.com", Password: "Secret#123"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
	assert.Equal(t, "Phone or email already registered.", appErr.Message)

	f.addProvider(t, model.EntityPharmacy, "pharma@example.com", model.ProviderStatusApproved)
	_, err = f.svc.RegisterPatient(ctx, RegisterPatientInput{Name: "B", Phone: "9123456789", Email: "pharma@example.com", Password: "Secret#123"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = f.svc.RegisterPatient(ctx, RegisterPatientInput{Name: "C", Phone: "1234567890", Email: "c@example.com", Password: "Secret#123"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = f.svc.RegisterPatient(ctx, RegisterPatientInput{Name: "C", Phone: "9000000000", Email: "c@example.com", Password: "weakpass"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestAdminRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.RegisterAdmin(ctx, RegisterAdminInput{Name: "Root", Phone: "9876543210", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.svc.RegisterAdmin(ctx, RegisterAdminInput{Name: "Again", Phone: "9876543210", Password: "secret1"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	session, err := f.svc.LoginAdmin(ctx, "9876543210", "secret1")
	require.NoError(t, err)
	claims, err := f.jwt.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID.String(), claims.ID)
	assert.Equal(t, 500, claims.Role)

	_, err = f.svc.LoginAdmin(ctx, "9876543210", "nope")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	_, err = f.svc.LoginAdmin(ctx, "9000000000", "secret1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addProvider(t, model.EntityClinic, "sunrise@example.com", model.ProviderStatusApproved)
	ref := AccountRef{Role: model.RoleProvider, EntityType: model.EntityClinic}

	err := f.svc.ResetPassword(ctx, ref, "sunrise@example.com", "newpass1")
	assert.Equal(t, msgOTPNotVerified, mustAppErr(t, err).Message)

	require.NoError(t, f.svc.ForgotPassword(ctx, ref, "sunrise@example.com"))
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "sunrise@example.com", f.mailer.sent[0].To)
	otp := f.mailer.lastOTP(t)

	err = f.svc.VerifyOTP(ctx, ref, "sunrise@example.com", "000000x")
	assert.Equal(t, msgInvalidOTP, mustAppErr(t, err).Message)

	require.NoError(t, f.svc.VerifyOTP(ctx, ref, "sunrise@example.com", otp))

	err = f.svc.ResetPassword(ctx, ref, "sunrise@example.com", "short")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	require.NoError(t, f.svc.ResetPassword(ctx, ref, "sunrise@example.com", "newpass1"))

	_, err = f.svc.Login(ctx, LoginInput{Email: "sunrise@example.com", Password: "newpass1", Role: model.RoleProvider, EntityType: model.EntityClinic})
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, ref, "sunrise@example.com", "another1")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "otp is consumed by a reset")
}

func TestVerifyOTPExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPatient(t)
	ref := AccountRef{Role: model.RolePatient}

	require.NoError(t, f.svc.ForgotPassword(ctx, ref, "asha@example.com"))
	otp := f.mailer.lastOTP(t)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(otpValidity + time.Minute) }
	err := f.svc.VerifyOTP(ctx, ref, "asha@example.com", otp)
	assert.Equal(t, msgInvalidOTP, mustAppErr(t, err).Message)
}

func TestForgotPasswordErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.ForgotPassword(ctx, AccountRef{Role: model.RolePatient}, "ghost@example.com")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	f.addPatient(t)
	f.mailer.err = errors.New("smtp down")
	err = f.svc.ForgotPassword(ctx, AccountRef{Role: model.RolePatient}, "asha@example.com")
	require.Error(t, err)
	_, isApp := apperrors.As(err)
	assert.False(t, isApp)
}

func mustAppErr(t *testing.T, err error) *apperrors.AppError {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr
}
