// Package audit records the purchase, payment and account trail.
//
// Writes are asynchronous so a slow audit table never delays a purchase.
// Call Wait during shutdown to flush pending writes.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/database/audit"
	"github.com/mrlokans/ebookstore/internal/entities"
	"github.com/mrlokans/ebookstore/internal/utils"
)

const writeTimeout = 5 * time.Second

// Service provides high-level audit logging functionality.
type Service struct {
	repo   *audit.Repository
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.repo.LogEvent(ctx, event); err != nil {
			s.logger.Warn("failed to log audit event",
				zap.String("event_type", string(event.EventType)),
				zap.String("action", event.Action),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every pending LogAsync write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogPurchase records a purchase state transition such as "intent_created".
func (s *Service) LogPurchase(userID, bookID uint, action, description string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventPurchase,
		Action:      action,
		Description: description,
		EntityType:  "book",
		EntityID:    &bookID,
	}
	s.LogAsync(withOutcome(event, err))
}

// LogPayment records the outcome of a gateway charge.
func (s *Service) LogPayment(userID, bookID uint, chargeRef string, amount int64, err error) {
	action := "charge_paid"
	if err != nil {
		action = "charge_failed"
	}
	event := &entities.AuditEvent{
		UserID:     userID,
		EventType:  entities.AuditEventPayment,
		Action:     action,
		EntityType: "book",
		EntityID:   &bookID,
		Metadata: metadata(map[string]any{
			"charge_ref": chargeRef,
			"amount":     amount,
		}),
	}
	s.LogAsync(withOutcome(event, err))
}

// LogReconciliation records a charge that has to be settled outside the request.
func (s *Service) LogReconciliation(userID, reconciliationID uint, action, chargeRef string, err error) {
	event := &entities.AuditEvent{
		UserID:     userID,
		EventType:  entities.AuditEventReconciliation,
		Action:     action,
		EntityType: "reconciliation",
		EntityID:   &reconciliationID,
		Metadata:   metadata(map[string]any{"charge_ref": chargeRef}),
	}
	s.LogAsync(withOutcome(event, err))
}

// LogDownload records whether a PDF download was served.
func (s *Service) LogDownload(userID, bookID uint, granted bool) {
	event := &entities.AuditEvent{
		UserID:     userID,
		EventType:  entities.AuditEventDownload,
		Action:     "pdf_download",
		EntityType: "book",
		EntityID:   &bookID,
		Status:     entities.AuditStatusSuccess,
	}
	if !granted {
		event.Status = entities.AuditStatusFailed
		event.Action = "pdf_download_denied"
	}
	s.LogAsync(event)
}

// LogCatalog records an author adding or removing a book.
func (s *Service) LogCatalog(authorID, bookID uint, action, title string) {
	event := &entities.AuditEvent{
		UserID:      authorID,
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: title,
		EntityType:  "book",
		EntityID:    &bookID,
		Status:      entities.AuditStatusSuccess,
	}
	s.LogAsync(event)
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, userID uint, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, userID, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func withOutcome(event *entities.AuditEvent, err error) *entities.AuditEvent {
	event.Status = entities.AuditStatusSuccess
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	return event
}

func metadata(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(data)
}

// truncate shortens a string to max length, marking the cut with an ellipsis.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return utils.Truncate(s, maxLen-3) + "..."
}
