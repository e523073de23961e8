package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	"github.com/jwalitptl/carelink-api/internal/service/notification"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/security"
	"github.com/jwalitptl/carelink-api/pkg/storage"
)

const (
	licenseDir      = "clinicUploads"
	licenseField    = "licenseProof"
	MaxLicenseSize  = 5 << 20
	approvedKey     = "approved"
	approvedListTTL = time.Minute
)

var licenseExts = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

type RegisterInput struct {
	EntityType       model.EntityType
	Name             string
	Email            string
	Phone            string
	Address          string
	Location         string
	Password         string
	Specializations  []string
	NumberOfDoctors  *int
	AcceptsEMI       bool
	AcceptsInsurance bool
}

type Service struct {
	providers repository.Providers
	registrar repository.AccountRegistrar
	blobs     storage.BlobStore
	hasher    security.PasswordHasher
	notifier  notification.Notifier
	cache     *cache.Cache
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	providers repository.Providers,
	registrar repository.AccountRegistrar,
	blobs storage.BlobStore,
	hasher security.PasswordHasher,
	notifier notification.Notifier,
	logger *logger.Logger,
) *Service {
	return &Service{
		providers: providers,
		registrar: registrar,
		blobs:     blobs,
		hasher:    hasher,
		notifier:  notifier,
		cache:     cache.New(approvedListTTL, 2*approvedListTTL),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a pending provider account. The license file, when
// given, is stored before the account and removed again if the account
// cannot be created.
func (s *Service) Register(ctx context.Context, in RegisterInput, license *storage.Upload) (*model.Provider, error) {
	p, err := s.buildProvider(in)
	if err != nil {
		return nil, err
	}

	var licenseKey string
	if license != nil {
		key, err := s.saveLicense(ctx, license)
		if err != nil {
			return nil, err
		}
		licenseKey = key
		path := "/" + key
		p.LicenseProof = &path
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.discard(ctx, licenseKey)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	p.PasswordHash = hash

	if err := s.registrar.RegisterProvider(ctx, p); err != nil {
		s.discard(ctx, licenseKey)
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.Conflict("Email already registered")
		}
		return nil, fmt.Errorf("failed to register %s: %w", p.EntityType, err)
	}

	s.logger.Info("Provider registered",
		"provider_id", p.ID.String(),
		"entity_type", string(p.EntityType))
	return p, nil
}

func (s *Service) buildProvider(in RegisterInput) (*model.Provider, error) {
	if _, err := s.providers.For(in.EntityType); err != nil {
		return nil, apperrors.Validation("Invalid entity type")
	}

	var specs []string
	for _, sp := range in.Specializations {
		for _, part := range strings.Split(sp, ",") {
			if part = strings.TrimSpace(part); part != "" {
				specs = append(specs, part)
			}
		}
	}

	p := &model.Provider{
		EntityType:       in.EntityType,
		Name:             strings.TrimSpace(in.Name),
		Email:            strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:            strings.TrimSpace(in.Phone),
		Address:          strings.TrimSpace(in.Address),
		Location:         strings.TrimSpace(in.Location),
		Specializations:  specs,
		AcceptsEMI:       in.AcceptsEMI,
		AcceptsInsurance: in.AcceptsInsurance,
		Status:           model.ProviderStatusPending,
	}
	if p.Name == "" || p.Email == "" || p.Phone == "" || p.Address == "" || p.Location == "" || in.Password == "" || len(specs) == 0 {
		return nil, apperrors.Validation("All required fields must be provided")
	}
	if in.EntityType == model.EntityClinic {
		if in.NumberOfDoctors == nil || *in.NumberOfDoctors < 0 {
			return nil, apperrors.Validation("numberOfDoctors is required for clinics")
		}
		p.NumberOfDoctors = in.NumberOfDoctors
	}

	now := s.now()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (s *Service) saveLicense(ctx context.Context, u *storage.Upload) (string, error) {
	ext := u.Ext()
	if !licenseExts[ext] {
		return "", apperrors.Validation("License proof must be a JPEG, PNG, WEBP or PDF file")
	}
	if u.Size > MaxLicenseSize {
		return "", apperrors.Validation("License proof must be 5MB or smaller")
	}

	key, err := storage.NewKey(licenseDir, licenseField, ext, s.now())
	if err != nil {
		return "", err
	}
	if _, err := s.blobs.Save(ctx, key, u.Reader); err != nil {
		return "", fmt.Errorf("failed to store license proof: %w", err)
	}
	return key, nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to remove orphaned license proof", "key", key, "error", err.Error())
	}
}

// SetStatus records the admin's decision and notifies the provider.
func (s *Service) SetStatus(ctx context.Context, entityType model.EntityType, id uuid.UUID, status model.ProviderStatus) (*model.Provider, error) {
	if status != model.ProviderStatusApproved && status != model.ProviderStatusRejected {
		return nil, apperrors.Validation("Invalid status")
	}
	repo, err := s.providers.For(entityType)
	if err != nil {
		return nil, apperrors.Validation("Invalid entity type")
	}

	if err := repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("%s not found", entityType.Title()))
		}
		return nil, fmt.Errorf("failed to update %s status: %w", entityType, err)
	}
	s.cache.Delete(approvedKey)

	p, err := repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload %s: %w", entityType, err)
	}

	_, err = s.notifier.Notify(ctx, notification.NotifyInput{
		RecipientID:   id,
		RecipientRole: model.RoleProvider,
		Message:       fmt.Sprintf("Your %s has been %s by the admin.", entityType, status),
		EntityType:    entityType,
	})
	if err != nil {
		s.logger.Error(err, "Failed to notify provider", "provider_id", id.String())
	}

	return p, nil
}

// ListApproved returns approved providers grouped by kind. Results are
// cached briefly and dropped whenever a status changes.
func (s *Service) ListApproved(ctx context.Context) (*model.ProvidersByType, error) {
	if cached, ok := s.cache.Get(approvedKey); ok {
		return cached.(*model.ProvidersByType), nil
	}

	grouped, err := s.listByStatus(ctx, model.ProviderStatusApproved)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(approvedKey, grouped)
	return grouped, nil
}

func (s *Service) ListPending(ctx context.Context) (*model.ProvidersByType, error) {
	return s.listByStatus(ctx, model.ProviderStatusPending)
}

func (s *Service) listByStatus(ctx context.Context, status model.ProviderStatus) (*model.ProvidersByType, error) {
	grouped := &model.ProvidersByType{}
	for _, t := range model.EntityTypes {
		repo, err := s.providers.For(t)
		if err != nil {
			return nil, err
		}
		providers, err := repo.ListByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s providers: %w", t, err)
		}
		for _, p := range providers {
			p.EntityType = t
			p.PasswordHash = ""
			p.OTPHash, p.OTPExpiry, p.OTPVerified = nil, nil, false
		}
		grouped.Set(t, providers)
	}
	return grouped, nil
}
