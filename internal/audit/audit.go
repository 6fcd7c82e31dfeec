package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventAccess EventType = "ACCESS"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
	EventLogin  EventType = "LOGIN"
)

type AuditEvent struct {
	Timestamp  time.Time       `json:"timestamp"`
	EventType  EventType       `json:"event_type"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	RequestID  string          `json:"request_id"`
	Status     string          `json:"status"`
	Details    json.RawMessage `json:"details,omitempty"`
}

type Service interface {
	LogEvent(ctx context.Context, event *AuditEvent) error
	QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]AuditEvent, error)
}

// service appends events to a JSON-lines file next to the entity data
// files. One line per event, newest last.
type service struct {
	mu     sync.Mutex
	path   string
	logger *logrus.Logger
}

func NewService(dataDir string) (Service, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	path := filepath.Join(dataDir, "audit.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	f.Close()

	return &service{
		path:   path,
		logger: logger,
	}, nil
}

func (s *service) LogEvent(ctx context.Context, event *AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if requestID, ok := ctx.Value("request_id").(string); ok {
		event.RequestID = requestID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.WithError(err).Error("failed to open audit log")
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(payload, '\n')); err != nil {
		s.logger.WithError(err).Error("failed to append audit event")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"event_type":  event.EventType,
		"user_id":     event.UserID,
		"action":      event.Action,
		"resource":    event.Resource,
		"resource_id": event.ResourceID,
		"status":      event.Status,
	}).Info("audit event recorded")

	return nil
}

// QueryEvents scans the audit log newest-first, applying the given
// field filters and from/size pagination.
func (s *service) QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			s.logger.WithError(err).Warn("skipping malformed audit entry")
			continue
		}
		if matches(&event, filters) {
			all = append(all, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Newest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	if from >= len(all) {
		return []AuditEvent{}, nil
	}
	end := from + size
	if size <= 0 || end > len(all) {
		end = len(all)
	}
	return all[from:end], nil
}

func matches(event *AuditEvent, filters map[string]interface{}) bool {
	for key, value := range filters {
		want, ok := value.(string)
		if !ok {
			continue
		}
		var got string
		switch key {
		case "user_id":
			got = event.UserID
		case "event_type":
			got = string(event.EventType)
		case "action":
			got = event.Action
		case "resource":
			got = event.Resource
		case "resource_id":
			got = event.ResourceID
		case "request_id":
			got = event.RequestID
		case "status":
			got = event.Status
		default:
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}
