package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/email"
	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	"github.com/jwalitptl/carelink-api/pkg/auth"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/security"
	"github.com/jwalitptl/carelink-api/pkg/validator"
)

const (
	otpValidity       = 10 * time.Minute
	minResetPassword  = 6
	msgUserNotFound   = "User not found"
	msgInvalidPass    = "Invalid password"
	msgInvalidOTP     = "Invalid or expired OTP"
	msgOTPNotVerified = "OTP not verified"
)

// AccountRef says which account table an email belongs to.
type AccountRef struct {
	Role       model.Role
	EntityType model.EntityType
}

type LoginInput struct {
	Email      string
	Password   string
	Role       model.Role
	EntityType model.EntityType
}

type RegisterPatientInput struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required,inphone"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strongpwd"`
}

type RegisterAdminInput struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required,inphone"`
	Password string `json:"password" validate:"required,min=6"`
}

// AccountInfo is the public part of a logged in account.
type AccountInfo struct {
	ID         uuid.UUID        `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email,omitempty"`
	Phone      string           `json:"phone,omitempty"`
	Role       model.Role       `json:"role"`
	EntityType model.EntityType `json:"entityType,omitempty"`
}

type Session struct {
	Token   string      `json:"token"`
	Account AccountInfo `json:"user"`
}

type Service struct {
	providers   repository.Providers
	patients    repository.PatientRepository
	admins      repository.AdminRepository
	registrar   repository.AccountRegistrar
	jwt         auth.JWTService
	hasher      security.PasswordHasher
	resetHasher security.PasswordHasher
	mailer      email.Service
	logger      *logger.Logger
	now         func() time.Time
}

func NewService(
	providers repository.Providers,
	patients repository.PatientRepository,
	admins repository.AdminRepository,
	registrar repository.AccountRegistrar,
	jwt auth.JWTService,
	hasher security.PasswordHasher,
	resetHasher security.PasswordHasher,
	mailer email.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		providers:   providers,
		patients:    patients,
		admins:      admins,
		registrar:   registrar,
		jwt:         jwt,
		hasher:      hasher,
		resetHasher: resetHasher,
		mailer:      mailer,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a patient or provider by email. Providers must be
// approved before they can sign in.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	ref := AccountRef{Role: in.Role, EntityType: in.EntityType}
	acct, err := s.lookup(ctx, ref, in.Email)
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(acct.creds.PasswordHash, in.Password); err != nil {
		return nil, apperrors.Unauthorized(msgInvalidPass)
	}

	if in.Role == model.RoleProvider && acct.status != model.ProviderStatusApproved {
		return nil, apperrors.Forbidden(fmt.Sprintf("%s status is '%s'. Wait for admin approval.", in.EntityType.Title(), acct.status))
	}

	info := AccountInfo{
		ID:    acct.creds.ID,
		Name:  acct.creds.Name,
		Email: acct.creds.Email,
		Role:  in.Role,
	}
	if in.Role == model.RoleProvider {
		info.EntityType = in.EntityType
	}
	return s.issue(info)
}

func (s *Service) issue(info AccountInfo) (*Session, error) {
	token, err := s.jwt.GenerateToken(auth.Claims{
		ID:         info.ID.String(),
		Role:       int(info.Role),
		EntityType: string(info.EntityType),
		Email:      info.Email,
		Name:       info.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, Account: info}, nil
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*model.Patient, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	p := &model.Patient{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.registrar.RegisterPatient(ctx, p); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) || errors.Is(err, repository.ErrPhoneTaken) {
			return nil, apperrors.Conflict("Phone or email already registered.")
		}
		return nil, fmt.Errorf("failed to register patient: %w", err)
	}

	s.logger.Info("Patient registered", "patient_id", p.ID.String())
	return p, nil
}

func (s *Service) RegisterAdmin(ctx context.Context, in RegisterAdminInput) (*model.Admin, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	a := &model.Admin{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:         in.Name,
		Phone:        in.Phone,
		PasswordHash: hash,
	}
	if err := s.admins.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			return nil, apperrors.Conflict("Admin already exists with this phone")
		}
		return nil, fmt.Errorf("failed to register admin: %w", err)
	}
	return a, nil
}

func (s *Service) LoginAdmin(ctx context.Context, phone, password string) (*Session, error) {
	a, err := s.admins.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Admin not found")
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized(msgInvalidPass)
	}
	return s.issue(AccountInfo{ID: a.ID, Name: a.Name, Phone: a.Phone, Role: model.RoleAdmin})
}

// ForgotPassword emails a one-time code that unlocks ResetPassword.
func (s *Service) ForgotPassword(ctx context.Context, ref AccountRef, emailAddr string) error {
	acct, err := s.lookup(ctx, ref, emailAddr)
	if err != nil {
		return err
	}

	otp, err := security.GenerateOTP()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(otp)
	if err != nil {
		return fmt.Errorf("failed to hash otp: %w", err)
	}
	expiry := s.now().Add(otpValidity)

	if err := acct.store.UpdateOTP(ctx, acct.creds.ID, model.OTPState{Hash: &hash, Expiry: &expiry}); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}

	msg, err := email.OTPMessage(acct.creds.Email, acct.creds.Name, otp, otpValidity)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}

	s.logger.Info("Password reset OTP sent", "account_id", acct.creds.ID.String(), "role", int(ref.Role))
	return nil
}

func (s *Service) VerifyOTP(ctx context.Context, ref AccountRef, emailAddr, otp string) error {
	acct, err := s.lookup(ctx, ref, emailAddr)
	if err != nil {
		return err
	}

	state := acct.creds.OTP
	if state.Hash == nil || state.Expiry == nil || s.now().After(*state.Expiry) {
		return apperrors.Validation(msgInvalidOTP)
	}
	if err := s.hasher.Compare(*state.Hash, strings.TrimSpace(otp)); err != nil {
		return apperrors.Validation(msgInvalidOTP)
	}

	state.Verified = true
	if err := acct.store.UpdateOTP(ctx, acct.creds.ID, state); err != nil {
		return fmt.Errorf("failed to mark otp verified: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, ref AccountRef, emailAddr, newPassword string) error {
	if len(newPassword) < minResetPassword {
		return apperrors.Validation(fmt.Sprintf("Password must be at least %d characters", minResetPassword))
	}
	acct, err := s.lookup(ctx, ref, emailAddr)
	if err != nil {
		return err
	}
	if !acct.creds.OTP.Verified {
		return apperrors.Validation(msgOTPNotVerified)
	}

	hash, err := s.resetHasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := acct.store.UpdatePassword(ctx, acct.creds.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("Password reset", "account_id", acct.creds.ID.String(), "role", int(ref.Role))
	return nil
}
