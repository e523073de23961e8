// Package memory holds map-backed repositories used by service and handler
// tests and by local runs without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
)

// Store shares one lock across every table so the cross-table email check
// in RegisterProvider and RegisterPatient is atomic.
type Store struct {
	mu            sync.RWMutex
	providers     map[model.EntityType]map[uuid.UUID]*model.Provider
	patients      map[uuid.UUID]*model.Patient
	admins        map[uuid.UUID]*model.Admin
	consultations map[uuid.UUID]*model.Consultation
	notifications map[uuid.UUID]*model.Notification
	outbox        map[uuid.UUID]*model.OutboxEvent
	prescriptions map[uuid.UUID]*model.PrescriptionRequest
	now           func() time.Time
}

func NewStore() *Store {
	s := &Store{
		providers:     make(map[model.EntityType]map[uuid.UUID]*model.Provider),
		patients:      make(map[uuid.UUID]*model.Patient),
		admins:        make(map[uuid.UUID]*model.Admin),
		consultations: make(map[uuid.UUID]*model.Consultation),
		notifications: make(map[uuid.UUID]*model.Notification),
		outbox:        make(map[uuid.UUID]*model.OutboxEvent),
		prescriptions: make(map[uuid.UUID]*model.PrescriptionRequest),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, t := range model.EntityTypes {
		s.providers[t] = make(map[uuid.UUID]*model.Provider)
	}
	return s
}

// Providers returns the lookup table over the store's provider tables.
func (s *Store) Providers() repository.Providers {
	providers := make(repository.Providers, len(model.EntityTypes))
	for _, t := range model.EntityTypes {
		providers[t] = &providerRepo{store: s, entityType: t}
	}
	return providers
}

func (s *Store) Patients() repository.PatientRepository { return &patientRepo{s} }
func (s *Store) Admins() repository.AdminRepository { return &adminRepo{s} }
func (s *Store) Registrar() repository.AccountRegistrar { return &registrar{s} }
func (s *Store) Consultations() repository.ConsultationRepository { return &consultationRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository { return &outboxRepo{s} }
func (s *Store) Prescriptions() repository.PrescriptionRepository { return &prescriptionRepo{s} }

// AllNotifications returns copies of every stored notification, newest first.
func (s *Store) AllNotifications() []*model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// AllOutbox returns every outbox event.
func (s *Store) AllOutbox() []*model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) emailInUseLocked(email string) bool {
	for _, table := range s.providers {
		for _, p := range table {
			if strings.EqualFold(p.Email, email) {
				return true
			}
		}
	}
	for _, p := range s.patients {
		if strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

type registrar struct{ s *Store }

func (r *registrar) RegisterProvider(_ context.Context, p *model.Provider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	table, ok := r.s.providers[p.EntityType]
	if !ok {
		return repository.ErrUnknownTable
	}
	if r.s.emailInUseLocked(p.Email) {
		return repository.ErrEmailTaken
	}
	cp := *p
	table[p.ID] = &cp
	return nil
}

func (r *registrar) RegisterPatient(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.emailInUseLocked(p.Email) {
		return repository.ErrEmailTaken
	}
	for _, existing := range r.s.patients {
		if existing.Phone == p.Phone {
			return repository.ErrPhoneTaken
		}
	}
	cp := *p
	r.s.patients[p.ID] = &cp
	return nil
}

type providerRepo struct {
	store      *Store
	entityType model.EntityType
}

func (r *providerRepo) table() map[uuid.UUID]*model.Provider {
	return r.store.providers[r.entityType]
}

func (r *providerRepo) Get(_ context.Context, id uuid.UUID) (*model.Provider, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.table()[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *providerRepo) GetByEmail(_ context.Context, email string) (*model.Provider, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, p := range r.table() {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *providerRepo) ListByStatus(_ context.Context, status model.ProviderStatus) ([]*model.Provider, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := []*model.Provider{}
	for _, p := range r.table() {
		if p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *providerRepo) update(id uuid.UUID, fn func(*model.Provider)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.table()[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(p)
	p.UpdatedAt = r.store.now()
	return nil
}

func (r *providerRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.ProviderStatus) error {
	return r.update(id, func(p *model.Provider) { p.Status = status })
}

func (r *providerRepo) UpdateOTP(_ context.Context, id uuid.UUID, otp model.OTPState) error {
	return r.update(id, func(p *model.Provider) {
		p.OTPHash, p.OTPExpiry, p.OTPVerified = otp.Hash, otp.Expiry, otp.Verified
	})
}

func (r *providerRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return r.update(id, func(p *model.Provider) {
		p.PasswordHash = hash
		p.OTPHash, p.OTPExpiry, p.OTPVerified = nil, nil, false
	})
}

type patientRepo struct{ s *Store }

func (r *patientRepo) find(match func(*model.Patient) bool) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.patients {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *patientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	return r.find(func(p *model.Patient) bool { return p.ID == id })
}

func (r *patientRepo) GetByEmail(_ context.Context, email string) (*model.Patient, error) {
	return r.find(func(p *model.Patient) bool { return strings.EqualFold(p.Email, email) })
}

func (r *patientRepo) GetByPhone(_ context.Context, phone string) (*model.Patient, error) {
	return r.find(func(p *model.Patient) bool { return p.Phone == phone })
}

func (r *patientRepo) update(id uuid.UUID, fn func(*model.Patient)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(p)
	p.UpdatedAt = r.s.now()
	return nil
}

func (r *patientRepo) SetClinicRequest(_ context.Context, id, clinicID uuid.UUID) error {
	return r.update(id, func(p *model.Patient) { p.ClinicRequest = &clinicID })
}

func (r *patientRepo) UpdateOTP(_ context.Context, id uuid.UUID, otp model.OTPState) error {
	return r.update(id, func(p *model.Patient) {
		p.OTPHash, p.OTPExpiry, p.OTPVerified = otp.Hash, otp.Expiry, otp.Verified
	})
}

func (r *patientRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return r.update(id, func(p *model.Patient) {
		p.PasswordHash = hash
		p.OTPHash, p.OTPExpiry, p.OTPVerified = nil, nil, false
	})
}

type adminRepo struct{ s *Store }

func (r *adminRepo) Create(_ context.Context, a *model.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.admins {
		if existing.Phone == a.Phone {
			return repository.ErrPhoneTaken
		}
	}
	cp := *a
	r.s.admins[a.ID] = &cp
	return nil
}

func (r *adminRepo) GetByPhone(_ context.Context, phone string) (*model.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.admins {
		if a.Phone == phone {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type consultationRepo struct{ s *Store }

func (r *consultationRepo) Create(_ context.Context, c *model.Consultation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.consultations[c.ID] = &cp
	return nil
}

func (r *consultationRepo) Get(_ context.Context, id uuid.UUID) (*model.Consultation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.consultations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *consultationRepo) List(_ context.Context, f model.ConsultationFilter) ([]*model.Consultation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Consultation{}
	for _, c := range r.s.consultations {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.ServiceID != nil && c.ServiceID != *f.ServiceID {
			continue
		}
		if f.ServiceType != nil && c.ServiceType != *f.ServiceType {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *consultationRepo) UpdateStatus(_ context.Context, c *model.Consultation, from model.ConsultationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.consultations[c.ID]
	if !ok || stored.Status != from {
		return repository.ErrStaleStatus
	}
	c.UpdatedAt = r.s.now()
	stored.Status, stored.AdminNote, stored.AlternativeTime = c.Status, c.AdminNote, c.AlternativeTime
	stored.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *consultationRepo) SetPatient(_ context.Context, id, patientID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.consultations[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.PatientID = &patientID
	c.UpdatedAt = r.s.now()
	return nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *n
	r.s.notifications[n.ID] = &cp
	return nil
}

func (r *notificationRepo) GetOwned(_ context.Context, id, receiverID uuid.UUID) (*model.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notifications[id]
	if !ok || n.ReceiverID != receiverID {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *notificationRepo) List(_ context.Context, f model.NotificationFilter) ([]*model.Notification, int64, error) {
	page := f.Pagination.Normalize()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	matched := []*model.Notification{}
	for _, n := range r.s.notifications {
		if n.ReceiverID != f.ReceiverID || n.ReceiverRole != f.ReceiverRole {
			continue
		}
		if !f.IncludeRead && n.Read {
			continue
		}
		cp := *n
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *notificationRepo) CountUnread(_ context.Context, receiverID uuid.UUID, role model.Role) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var count int64
	for _, n := range r.s.notifications {
		if n.ReceiverID == receiverID && n.ReceiverRole == role && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.Read {
		return 0, nil
	}
	n.Read, n.ReadAt = true, &at
	return 1, nil
}

func (r *notificationRepo) MarkAllRead(_ context.Context, receiverID uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, n := range r.s.notifications {
		if n.ReceiverID == receiverID && !n.Read {
			readAt := at
			n.Read, n.ReadAt = true, &readAt
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, n := range r.s.notifications {
		if n.CreatedAt.Before(cutoff) {
			delete(r.s.notifications, id)
			count++
		}
	}
	return count, nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *e
	r.s.outbox[e.ID] = &cp
	return nil
}

func (r *outboxRepo) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	due := []*model.OutboxEvent{}
	for _, e := range r.s.outbox {
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*model.OutboxEvent, 0, len(due))
	leaseUntil := now.Add(lease)
	for _, e := range due {
		e.RetryAt = &leaseUntil
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *outboxRepo) update(id uuid.UUID, fn func(*model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(e)
	e.UpdatedAt = r.s.now()
	return nil
}

func (r *outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := r.s.now()
		e.Status, e.ProcessedAt, e.ErrorMessage = model.OutboxStatusProcessed, &now, nil
	})
}

func (r *outboxRepo) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status, e.ErrorMessage, e.RetryAt = model.OutboxStatusRetry, &errMsg, &retryAt
		e.RetryCount++
	})
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status, e.ErrorMessage = model.OutboxStatusFailed, &errMsg
		e.RetryCount++
	})
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			count++
		}
	}
	return count, nil
}

type prescriptionRepo struct{ s *Store }

func (r *prescriptionRepo) Create(_ context.Context, p *model.PrescriptionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.prescriptions[p.ID] = &cp
	return nil
}

func (r *prescriptionRepo) Get(_ context.Context, id uuid.UUID) (*model.PrescriptionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.prescriptions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *prescriptionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.PrescriptionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.PrescriptionRequest{}
	for _, p := range r.s.prescriptions {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
