package medrecord

import (
	"context"
	"sort"
	"time"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
	"github.com/mesikahq/hospital-ops/internal/patient"
)

type Service interface {
	Add(ctx context.Context, rec *MedicalRecord) (string, error)
	Get(ctx context.Context, id string) (*MedicalRecord, error)
	History(ctx context.Context, patientID string) ([]*MedicalRecord, error)
	Archive(ctx context.Context, id string) error
}

type service struct {
	store    *dualstore.Store[*MedicalRecord]
	patients patient.Service
	audit    audit.Service
}

func NewService(store *dualstore.Store[*MedicalRecord], patients patient.Service, auditService audit.Service) Service {
	return &service{
		store:    store,
		patients: patients,
		audit:    auditService,
	}
}

func (s *service) Add(ctx context.Context, rec *MedicalRecord) (string, error) {
	if _, err := s.patients.Get(ctx, rec.PatientID); err != nil {
		return "", err
	}

	now := time.Now()
	rec.ID = ""
	rec.Archived = false
	if rec.VisitDate.IsZero() {
		rec.VisitDate = now
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	id, err := s.store.Put(rec)
	if err != nil {
		return "", err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID(ctx),
		Action:     "ADD",
		Resource:   "medical_record",
		ResourceID: id,
		Status:     "success",
	})
	return id, nil
}

func (s *service) Get(ctx context.Context, id string) (*MedicalRecord, error) {
	rec, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventAccess,
		UserID:     userID(ctx),
		Action:     "VIEW",
		Resource:   "medical_record",
		ResourceID: id,
		Status:     "success",
	})
	return rec, nil
}

// History lists a patient's records newest visit first.
func (s *service) History(ctx context.Context, patientID string) ([]*MedicalRecord, error) {
	recs := s.store.List(func(r *MedicalRecord) bool {
		return r.PatientID == patientID
	})
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].VisitDate.After(recs[j].VisitDate)
	})

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventAccess,
		UserID:     userID(ctx),
		Action:     "HISTORY",
		Resource:   "medical_record",
		ResourceID: patientID,
		Status:     "success",
	})
	return recs, nil
}

func (s *service) Archive(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventDelete,
		UserID:     userID(ctx),
		Action:     "ARCHIVE",
		Resource:   "medical_record",
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
