package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
)

// credentialStore is the write side shared by patient and provider
// repositories.
type credentialStore interface {
	UpdateOTP(ctx context.Context, id uuid.UUID, otp model.OTPState) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type account struct {
	creds  model.Credentials
	status model.ProviderStatus
	store  credentialStore
}

func (s *Service) lookup(ctx context.Context, ref AccountRef, emailAddr string) (*account, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return nil, apperrors.Validation("Email is required")
	}

	switch ref.Role {
	case model.RolePatient:
		p, err := s.patients.GetByEmail(ctx, emailAddr)
		if err != nil {
			return nil, notFound(err)
		}
		return &account{
			creds: model.Credentials{
				ID:           p.ID,
				Name:         p.Name,
				Email:        p.Email,
				PasswordHash: p.PasswordHash,
				OTP:          model.OTPState{Hash: p.OTPHash, Expiry: p.OTPExpiry, Verified: p.OTPVerified},
			},
			store: s.patients,
		}, nil

	case model.RoleProvider:
		if ref.EntityType == "" {
			return nil, apperrors.Validation("Entity type is required")
		}
		repo, err := s.providers.For(ref.EntityType)
		if err != nil {
			return nil, apperrors.Validation("Invalid entity type")
		}
		p, err := repo.GetByEmail(ctx, emailAddr)
		if err != nil {
			return nil, notFound(err)
		}
		return &account{
			creds: model.Credentials{
				ID:           p.ID,
				Name:         p.Name,
				Email:        p.Email,
				PasswordHash: p.PasswordHash,
				OTP:          model.OTPState{Hash: p.OTPHash, Expiry: p.OTPExpiry, Verified: p.OTPVerified},
			},
			status: p.Status,
			store:  repo,
		}, nil
	}

	return nil, apperrors.Validation("Invalid role")
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(msgUserNotFound)
	}
	return fmt.Errorf("failed to get account: %w", err)
}
