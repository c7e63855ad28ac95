package service

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hookflow-go/internal/services/webhook/dedupe"
	"github.com/hookflow-go/internal/services/webhook/dispatcher"
	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/internal/services/webhook/provider"
	"github.com/hookflow-go/internal/services/webhook/repository"
	"github.com/hookflow-go/pkg/config"
	"github.com/hookflow-go/pkg/contracts/webhook"
	"github.com/hookflow-go/pkg/events"
	"github.com/hookflow-go/pkg/logger"
	"github.com/hookflow-go/pkg/metrics"
)

// WebhookService runs the ingestion pipeline: decode, normalize, dedupe,
// lock, race dispatch against the ack deadline, respond.
type WebhookService struct {
	repo       repository.Repository
	registry   *provider.Registry
	dedupe     dedupe.Store
	locks      dedupe.LockManager
	dispatcher *dispatcher.Dispatcher
	eventBus   events.EventBus
	tasks      *TaskSupervisor
	cfg        config.WebhookConfig
	logger     logger.Logger
}

func NewWebhookService(
	repo repository.Repository,
	registry *provider.Registry,
	store dedupe.Store,
	locks dedupe.LockManager,
	disp *dispatcher.Dispatcher,
	eventBus events.EventBus,
	cfg config.WebhookConfig,
	log logger.Logger,
) *WebhookService {
	return &WebhookService{
		repo:       repo,
		registry:   registry,
		dedupe:     store,
		locks:      locks,
		dispatcher: disp,
		eventBus:   eventBus,
		tasks:      NewTaskSupervisor(cfg.MaxBackgroundTasks, log),
		cfg:        cfg,
		logger:     log,
	}
}

// Tasks exposes the background task supervisor for shutdown draining.
func (s *WebhookService) Tasks() *TaskSupervisor {
	return s.tasks
}

// HandleVerification serves the GET handshake for a webhook path.
func (s *WebhookService) HandleVerification(ctx context.Context, path string, query url.Values) (*provider.Response, error) {
	wh, err := s.repo.GetActiveByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.registry.ForWebhook(wh).Verify(ctx, wh, query), nil
}

// HandleDelivery runs one inbound POST through the full pipeline and returns
// the synchronous HTTP reply.
func (s *WebhookService) HandleDelivery(ctx context.Context, path string, body []byte, contentType string, header http.Header) (*provider.Response, error) {
	wh, err := s.repo.GetActiveByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	decoded, err := payload.Decode(body, contentType)
	if err != nil {
		return nil, err
	}

	adapter := s.registry.ForWebhook(wh)
	result, err := adapter.Normalize(ctx, wh, decoded, header)
	if err != nil {
		return nil, err
	}

	// Verification handshakes bypass dedup and locking entirely.
	if result.Verification != nil {
		return result.Verification, nil
	}
	if result.ShortCircuit != nil {
		metrics.DeliveriesTotal.WithLabelValues(string(wh.Provider), "short_circuit").Inc()
		return result.ShortCircuit, nil
	}

	event := result.Event
	log := s.logger.With("path", path, "provider", event.Provider, "key", event.IdempotencyKey)

	s.publishEvent(events.TypeWebhookReceived, wh, event)

	// Resolve the workflow before consuming the idempotency key so a
	// misconfigured webhook does not eat a legitimate delivery's marker.
	wf, err := s.repo.GetWorkflow(ctx, wh.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !event.SkipSharedDedupe {
		duplicate, derr := s.dedupe.CheckAndMark(ctx, event.IdempotencyKey, s.dedupeTTL(event))
		if derr != nil {
			// Fail open: availability over the idempotency guarantee.
			metrics.StoreDegradedTotal.WithLabelValues("dedupe").Inc()
			log.Warn("Dedup store unavailable, proceeding without dedup", "error", derr)
		} else if duplicate {
			metrics.DuplicatesTotal.WithLabelValues(string(event.Provider)).Inc()
			log.Info("Duplicate delivery short-circuited")
			s.publishEvent(events.TypeWebhookDuplicate, wh, event)
			return provider.PlainOK("duplicate"), nil
		}
	}

	holderID := uuid.New().String()
	locked, lerr := s.locks.Acquire(ctx, event.IdempotencyKey, holderID, s.cfg.LockTTL())
	if lerr != nil {
		metrics.StoreDegradedTotal.WithLabelValues("lock").Inc()
		log.Warn("Lock store unavailable, proceeding without lock", "error", lerr)
		locked = false
		holderID = ""
	} else if !locked {
		metrics.LockContentionTotal.WithLabelValues(string(event.Provider)).Inc()
		log.Info("Delivery already being processed elsewhere")
		return provider.PlainOK("already being processed"), nil
	}

	if event.PersistConfig {
		if err := s.repo.UpdateProviderConfig(ctx, wh); err != nil {
			log.Warn("Failed to persist provider config state", "error", err)
		}
	}

	if event.Synchronous {
		return s.dispatchSync(ctx, wh, wf, event, holderID, log)
	}
	return s.dispatchRaced(ctx, wh, wf, event, holderID, log)
}

// dispatchSync runs the dispatch inline with no deadline race. Used for
// polling-style providers whose downstream work is bounded, and as fallback
// when the task supervisor is at capacity.
func (s *WebhookService) dispatchSync(ctx context.Context, wh *webhook.Webhook, wf *webhook.Workflow, event *provider.Event, holderID string, log logger.Logger) (*provider.Response, error) {
	defer s.releaseLock(event.IdempotencyKey, holderID)

	if _, err := s.dispatcher.Dispatch(ctx, wh, wf, event); err != nil {
		metrics.DeliveriesTotal.WithLabelValues(string(event.Provider), "error").Inc()
		return nil, err
	}
	metrics.DeliveriesTotal.WithLabelValues(string(event.Provider), "dispatched").Inc()
	return event.Ack, nil
}

type raceResult struct {
	err error
}

// dispatchRaced races the dispatch against the ack deadline. Whichever
// finishes first shapes the HTTP response; a deadline win does not cancel the
// dispatch, it keeps running under the task supervisor. Provider retries plus
// deduplication absorb the cases where a detached dispatch dies with the
// process.
func (s *WebhookService) dispatchRaced(ctx context.Context, wh *webhook.Webhook, wf *webhook.Workflow, event *provider.Event, holderID string, log logger.Logger) (*provider.Response, error) {
	taskID := uuid.New().String()
	if !s.tasks.TryRegister(taskID) {
		return s.dispatchSync(ctx, wh, wf, event, holderID, log)
	}

	// The dispatch must survive the HTTP request lifecycle: detach its
	// context so response completion does not cancel it.
	dispatchCtx := context.WithoutCancel(ctx)
	resultCh := make(chan raceResult, 1)

	go func() {
		_, err := s.dispatcher.Dispatch(dispatchCtx, wh, wf, event)
		s.releaseLock(event.IdempotencyKey, holderID)
		s.tasks.Done(taskID, err)
		resultCh <- raceResult{err: err}
	}()

	timer := time.NewTimer(s.cfg.AckTimeout())
	defer timer.Stop()

	select {
	case r := <-resultCh:
		if r.err != nil {
			metrics.DeliveriesTotal.WithLabelValues(string(event.Provider), "error").Inc()
			return nil, r.err
		}
		metrics.DeliveriesTotal.WithLabelValues(string(event.Provider), "dispatched").Inc()
		return event.Ack, nil
	case <-timer.C:
		metrics.TimeoutAcksTotal.WithLabelValues(string(event.Provider)).Inc()
		metrics.DeliveriesTotal.WithLabelValues(string(event.Provider), "timeout_ack").Inc()
		log.Info("Ack deadline reached, dispatch continues in background", "taskId", taskID)
		return provider.PlainOK("Webhook received. Workflow execution continues in background."), nil
	}
}

// TestInstructions renders the testing guidance for a webhook, enforcing that
// the caller owns the parent workflow.
func (s *WebhookService) TestInstructions(ctx context.Context, webhookID, userID, baseURL string) (string, error) {
	wh, err := s.repo.GetByID(ctx, webhookID)
	if err != nil {
		return "", err
	}

	wf, err := s.repo.GetWorkflow(ctx, wh.WorkflowID)
	if err != nil {
		return "", err
	}
	if wf.UserID != userID {
		return "", webhook.ErrNotAuthorized
	}

	return s.registry.ForWebhook(wh).TestInstructions(wh, baseURL), nil
}

func (s *WebhookService) dedupeTTL(event *provider.Event) time.Duration {
	if event.DurableKey {
		return s.cfg.DedupeTTL()
	}
	return s.cfg.GenericDedupeTTL()
}

func (s *WebhookService) releaseLock(key, holderID string) {
	if holderID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.locks.Release(ctx, key, holderID); err != nil {
		// TTL expiry cleans up; release is promptness only.
		s.logger.Debug("Lock release failed", "key", key, "error", err)
	}
}

func (s *WebhookService) publishEvent(eventType string, wh *webhook.Webhook, event *provider.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.eventBus.Publish(ctx, events.Event{
		Type:        eventType,
		AggregateID: wh.ID,
		Payload: map[string]interface{}{
			"webhookId":      wh.ID,
			"workflowId":     wh.WorkflowID,
			"provider":       string(event.Provider),
			"idempotencyKey": event.IdempotencyKey,
		},
	})
	if err != nil {
		s.logger.Debug("Failed to publish pipeline event", "type", eventType, "error", err)
	}
}
