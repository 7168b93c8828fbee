package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/duty"
)

// reminderEnvelope is the wire format the notification gateway accepts.
type reminderEnvelope struct {
	Kind        string    `json:"kind"`
	DutyID      string    `json:"dutyId"`
	SlotIndex   int       `json:"slotIndex"`
	Label       string    `json:"label,omitempty"`
	Sound       string    `json:"sound,omitempty"`
	FiresAt     time.Time `json:"firesAt,omitempty"`
	SnoozeCount int       `json:"snoozeCount,omitempty"`
	FullScreen  bool      `json:"fullScreen"`
}

// GatewayConfig holds configuration for the notification gateway.
type GatewayConfig struct {
	// BaseURL is the gateway endpoint, e.g. "https://push.shiftwake.dev".
	BaseURL string

	// APIKey authenticates this backend against the gateway.
	APIKey string

	// Client overrides the resilient HTTP client. Optional.
	Client *Client

	// Metrics records delivery outcomes. Optional.
	Metrics *DeliveryMetrics

	Logger zerolog.Logger
}

// Gateway posts fired reminders to the device's notification gateway. It is
// the production Deliverer behind the dispatcher.
type Gateway struct {
	client  *Client
	baseURL string
	apiKey  string
	metrics *DeliveryMetrics
	logger  zerolog.Logger

	mu            sync.Mutex
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewGateway creates a notification gateway deliverer.
func NewGateway(cfg GatewayConfig) *Gateway {
	client := cfg.Client
	if client == nil {
		client = NewClient(DefaultClientConfig("push-gateway"))
	}
	return &Gateway{
		client:  client,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// ShowReminder posts one reminder to the gateway. Wake-app reminders are
// flagged full-screen; the other kinds render as regular notifications.
func (g *Gateway) ShowReminder(ctx context.Context, r alarm.Reminder) error {
	start := time.Now()
	err := g.post(ctx, r)
	g.metrics.RecordDelivery(string(r.Kind), time.Since(start), err)
	g.record(err)

	if err != nil {
		g.logger.Warn().
			Err(err).
			Str("duty_id", r.DutyID).
			Str("kind", string(r.Kind)).
			Int("slot", r.SlotIndex).
			Msg("reminder delivery failed")
		return err
	}

	g.logger.Info().
		Str("duty_id", r.DutyID).
		Str("kind", string(r.Kind)).
		Int("slot", r.SlotIndex).
		Msg("reminder delivered")
	return nil
}

func (g *Gateway) post(ctx context.Context, r alarm.Reminder) error {
	envelope := reminderEnvelope{
		Kind:        string(r.Kind),
		DutyID:      r.DutyID,
		SlotIndex:   r.SlotIndex,
		Label:       r.Label,
		Sound:       r.Sound,
		FiresAt:     r.FiresAt,
		SnoozeCount: r.SnoozeCount,
		FullScreen:  r.Kind == duty.KindWakeApp,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding reminder: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.DoWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("posting reminder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

func (g *Gateway) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if err != nil {
		g.lastFailureAt = &now
		g.lastError = err.Error()
		return
	}
	g.lastSuccessAt = &now
	g.lastError = ""
}

// Health reports the gateway's delivery health for ops surfaces.
type Health struct {
	Healthy       bool
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Health returns the current delivery health snapshot.
func (g *Gateway) Health() Health {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Health{
		Healthy:       g.client.CircuitBreakerState() == gobreaker.StateClosed,
		LastSuccessAt: g.lastSuccessAt,
		LastFailureAt: g.lastFailureAt,
		LastError:     g.lastError,
	}
}

var _ alarm.Deliverer = (*Gateway)(nil)
