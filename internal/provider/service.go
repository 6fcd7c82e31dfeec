package provider

import (
	"context"
	"time"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

type Service interface {
	Register(ctx context.Context, p *Provider) (string, error)
	Get(ctx context.Context, id string) (*Provider, error)
	List(ctx context.Context) ([]*Provider, error)
	Deactivate(ctx context.Context, id string) error
}

type service struct {
	store *dualstore.Store[*Provider]
	audit audit.Service
}

func NewService(store *dualstore.Store[*Provider], auditService audit.Service) Service {
	return &service{
		store: store,
		audit: auditService,
	}
}

func (s *service) Register(ctx context.Context, p *Provider) (string, error) {
	now := time.Now()
	p.ID = ""
	p.Archived = false
	p.Status = StatusActive
	p.CreatedAt = now
	p.UpdatedAt = now

	id, err := s.store.Put(p)
	if err != nil {
		return "", err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "REGISTER",
		Resource:   "provider",
		ResourceID: id,
		Status:     "success",
	})
	return id, nil
}

func (s *service) Get(ctx context.Context, id string) (*Provider, error) {
	return s.store.Get(id)
}

func (s *service) List(ctx context.Context) ([]*Provider, error) {
	return s.store.List(nil), nil
}

// Deactivate stops new bookings for the provider without touching
// existing appointments.
func (s *service) Deactivate(ctx context.Context, id string) error {
	p, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if p.Status == StatusInactive {
		return nil
	}

	p.Status = StatusInactive
	p.UpdatedAt = time.Now()
	if _, err := s.store.Put(p); err != nil {
		return err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "DEACTIVATE",
		Resource:   "provider",
		ResourceID: id,
		Status:     "success",
	})
	return nil
}

func userID(ctx context.Context) string {
	if id, ok := ctx.Value("user_id").(string); ok {
		return id
	}
	return ""
}
