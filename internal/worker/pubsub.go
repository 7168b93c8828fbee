package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the worker subscription.
const (
	// JobStartupRecovery replans every upcoming duty. Published when a
	// device reports a reboot or a push-token change.
	JobStartupRecovery = "startup_recovery"

	// JobReplanAll is an operator-initiated full replan, identical in
	// effect to startup recovery.
	JobReplanAll = "replan_all"

	// JobHealthCheck verifies storage connectivity and logs cumulative
	// recovery metrics.
	JobHealthCheck = "health_check"
)

// JobMessage is the payload published to the worker topic.
type JobMessage struct {
	JobType     string `json:"job_type"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// PubSubConfig configures the worker's Pub/Sub subscription.
type PubSubConfig struct {
	ProjectID      string
	SubscriptionID string
}

// PubSubHandler consumes job messages and dispatches them to the
// recovery job.
type PubSubHandler struct {
	client   *pubsub.Client
	config   PubSubConfig
	recovery *RecoveryJob
	duties   DutyLister
	logger   zerolog.Logger
}

// NewPubSubHandler creates a Pub/Sub consumer for worker jobs.
func NewPubSubHandler(ctx context.Context, config PubSubConfig, recovery *RecoveryJob, duties DutyLister, logger zerolog.Logger) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubHandler{
		client:   client,
		config:   config,
		recovery: recovery,
		duties:   duties,
		logger:   logger.With().Str("component", "pubsub_handler").Logger(),
	}, nil
}

// Listen blocks receiving messages until the context is cancelled.
func (h *PubSubHandler) Listen(ctx context.Context) error {
	sub := h.client.Subscriber(h.config.SubscriptionID)
	sub.ReceiveSettings.MaxOutstandingMessages = 10
	sub.ReceiveSettings.MaxExtension = 10 * time.Minute

	h.logger.Info().
		Str("subscription", h.config.SubscriptionID).
		Msg("Listening for worker jobs")

	return sub.Receive(ctx, h.handleMessage)
}

// Close releases the underlying Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		h.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Msg("Failed to decode job message, dropping")
		msg.Ack()
		return
	}

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("job_type", job.JobType).
		Logger()

	switch job.JobType {
	case JobStartupRecovery, JobReplanAll:
		result, err := h.recovery.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Recovery run failed, nacking for redelivery")
			msg.Nack()
			return
		}
		if result.PermissionDenied {
			// Redelivery will fail the same way until the user acts,
			// but the retry backoff gives them time to do so.
			logger.Warn().Msg("Recovery aborted on permission denial, nacking")
			msg.Nack()
			return
		}
		msg.Ack()

	case JobHealthCheck:
		if err := h.runHealthCheck(ctx); err != nil {
			logger.Error().Err(err).Msg("Health check failed, nacking")
			msg.Nack()
			return
		}
		msg.Ack()

	default:
		logger.Warn().Msg("Unknown job type, dropping")
		msg.Ack()
	}
}

func (h *PubSubHandler) runHealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	duties, err := h.duties.ListFrom(checkCtx, time.Now())
	if err != nil {
		return fmt.Errorf("listing duties: %w", err)
	}

	h.logger.Info().
		Int("upcoming_duties", len(duties)).
		Fields(h.recovery.Metrics().Snapshot()).
		Msg("Worker health check")

	return nil
}
