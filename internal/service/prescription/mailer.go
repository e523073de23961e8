package prescription

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/carelink-api/internal/email"
	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/storage"
)

// Mailer handles prescription.uploaded events by emailing the provider
// with the prescription attached.
type Mailer struct {
	repo   repository.PrescriptionRepository
	blobs  storage.BlobStore
	mailer email.Service
	logger *logger.Logger
}

func NewMailer(repo repository.PrescriptionRepository, blobs storage.BlobStore, mailer email.Service, logger *logger.Logger) *Mailer {
	return &Mailer{repo: repo, blobs: blobs, mailer: mailer, logger: logger}
}

func (m *Mailer) Handle(ctx context.Context, evt *model.OutboxEvent) error {
	var payload model.PrescriptionUploadedPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", evt.EventType, err)
	}

	req, err := m.repo.Get(ctx, payload.RequestID)
	if err != nil {
		return fmt.Errorf("failed to load prescription request: %w", err)
	}

	path, err := m.blobs.LocalPath(req.Path)
	if err != nil {
		return err
	}

	msg, err := email.PrescriptionMessage(req.ProviderEmail, email.PrescriptionDetails{
		RequestID:    req.ID.String(),
		ProviderName: req.ProviderName,
		ServiceType:  req.ProviderModel,
		Username:     req.Username,
		Mobile:       req.Mobile,
		Doctor:       req.Doctor,
		Date:         req.Date,
		Notes:        req.Notes,
		FilePath:     path,
		FileName:     req.OriginalName,
		FileSize:     req.Size,
		MimeType:     req.MimeType,
	})
	if err != nil {
		return err
	}
	if err := m.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to email %s: %w", req.ProviderEmail, err)
	}

	m.logger.Info("Prescription emailed to provider",
		"request_id", req.ID.String(),
		"provider_id", req.ProviderID.String())
	return nil
}
