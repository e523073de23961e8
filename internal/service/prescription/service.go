package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
	"github.com/jwalitptl/carelink-api/pkg/event"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/storage"
)

const (
	fileDir     = "prescriptions"
	fileField   = "prescription"
	MaxFileSize = 10 << 20
	dateLayout  = "2006-01-02"
)

var allowedExts = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

var providerModels = map[model.EntityType]string{
	model.EntityPharmacy:   "Pharmacy",
	model.EntityLaboratory: "Laboratory",
}

type UploadInput struct {
	Type       model.EntityType
	Doctor     string
	Date       string
	Service    string
	Username   string
	Mobile     string
	ProviderID uuid.UUID
	Notes      string
}

type Service struct {
	repo      repository.PrescriptionRepository
	providers repository.Providers
	blobs     storage.BlobStore
	events    event.Emitter
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	repo repository.PrescriptionRepository,
	providers repository.Providers,
	blobs storage.BlobStore,
	events event.Emitter,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		providers: providers,
		blobs:     blobs,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a prescription for a pharmacy or lab and queues the
// email to the provider.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, in UploadInput, file *storage.Upload) (*model.PrescriptionRequest, error) {
	providerModel, ok := providerModels[in.Type]
	if !ok {
		return nil, apperrors.Validation(`Invalid type (must be "pharmacy" or "lab")`)
	}
	if file == nil {
		return nil, apperrors.Validation("Prescription file is required")
	}
	if !allowedExts[file.Ext()] {
		return nil, apperrors.Validation("Prescription must be a JPEG, PNG, WEBP or PDF file")
	}
	if file.Size > MaxFileSize {
		return nil, apperrors.Validation("Prescription file is too large")
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return nil, apperrors.Validation("Invalid date")
	}

	repo, err := s.providers.For(in.Type)
	if err != nil {
		return nil, err
	}
	provider, err := repo.Get(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(providerModel + " not found")
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	now := s.now()
	key, err := storage.NewKey(fileDir, fileField, file.Ext(), now)
	if err != nil {
		return nil, err
	}
	size, err := s.blobs.Save(ctx, key, file.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to store prescription: %w", err)
	}

	req := &model.PrescriptionRequest{
		Base:          model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Type:          in.Type,
		Doctor:        strings.TrimSpace(in.Doctor),
		Date:          date,
		Service:       strings.TrimSpace(in.Service),
		UserID:        userID,
		Username:      strings.TrimSpace(in.Username),
		Mobile:        strings.TrimSpace(in.Mobile),
		ProviderID:    provider.ID,
		ProviderModel: providerModel,
		ProviderName:  provider.Name,
		ProviderEmail: provider.Email,
		PrescriptionFile: model.PrescriptionFile{
			Filename:     key[len(fileDir)+1:],
			OriginalName: file.Filename,
			Path:         key,
			Size:         size,
			MimeType:     file.ContentType,
		},
		Status: model.PrescriptionStatusPending,
		Notes:  strings.TrimSpace(in.Notes),
	}

	if err := s.repo.Create(ctx, req); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned prescription", "key", key, "error", delErr.Error())
		}
		return nil, fmt.Errorf("failed to save prescription request: %w", err)
	}

	err = s.events.Emit(ctx, model.EventPrescriptionUploaded, model.PrescriptionUploadedPayload{RequestID: req.ID})
	if err != nil {
		s.logger.Error(err, "Failed to queue prescription email", "request_id", req.ID.String())
	}

	return req, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(dateLayout, s)
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.PrescriptionRequest, error) {
	reqs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return reqs, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.PrescriptionRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Prescription not found")
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	return req, nil
}
