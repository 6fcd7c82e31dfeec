package patient

import (
	"context"
	"strings"
	"time"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

type Service interface {
	Register(ctx context.Context, p *Patient) (string, error)
	Get(ctx context.Context, id string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Archive(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Patient, error)
	Search(ctx context.Context, term string) ([]*Patient, error)
}

type service struct {
	store *dualstore.Store[*Patient]
	audit audit.Service
}

func NewService(store *dualstore.Store[*Patient], auditService audit.Service) Service {
	return &service{
		store: store,
		audit: auditService,
	}
}

func (s *service) Register(ctx context.Context, p *Patient) (string, error) {
	now := time.Now()
	p.ID = ""
	p.Archived = false
	p.RegisteredAt = now
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
		Resource:   "patient",
		ResourceID: id,
		Status:     "success",
	})
	return id, nil
}

// Get returns the patient record, archived or not, so historical bills
// and appointments keep resolving.
func (s *service) Get(ctx context.Context, id string) (*Patient, error) {
	p, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventAccess,
		UserID:     userID(ctx),
		Action:     "READ",
		Resource:   "patient",
		ResourceID: id,
		Status:     "success",
	})
	return p, nil
}

func (s *service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.store.Get(p.ID)
	if err != nil {
		return err
	}

	// Registration and archive state are not caller-editable.
	p.RegisteredAt = existing.RegisteredAt
	p.CreatedAt = existing.CreatedAt
	p.Archived = existing.Archived
	p.UpdatedAt = time.Now()

	if _, err := s.store.Put(p); err != nil {
		return err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "UPDATE",
		Resource:   "patient",
		ResourceID: p.ID,
		Status:     "success",
	})
	return nil
}

func (s *service) Archive(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventDelete,
		UserID:     userID(ctx),
		Action:     "ARCHIVE",
		Resource:   "patient",
		ResourceID: id,
		Status:     "success",
	})
	return nil
}

func (s *service) List(ctx context.Context) ([]*Patient, error) {
	return s.store.List(nil), nil
}

// Search matches the term case-insensitively against patient names and
// ids.
func (s *service) Search(ctx context.Context, term string) ([]*Patient, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	return s.store.List(func(p *Patient) bool {
		return strings.Contains(strings.ToLower(p.Name()), needle) ||
			strings.Contains(strings.ToLower(p.ID), needle)
	}), nil
}

func userID(ctx context.Context) string {
	if id, ok := ctx.Value("user_id").(string); ok {
		return id
	}
	return ""
}
