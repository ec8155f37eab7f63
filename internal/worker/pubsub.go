package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried by refresh messages.
const (
	JobSnapshotRefresh = "snapshot_refresh"
	JobHealthCheck     = "health_check"
)

var (
	// ErrUnknownJob is returned for a job type the worker does not handle.
	// Such messages are acked so they are not redelivered.
	ErrUnknownJob = errors.New("unknown job type")
	// ErrMalformedMessage is returned for a payload that is not a RefreshMessage.
	ErrMalformedMessage = errors.New("malformed message")
)

// RefreshMessage is the payload of a worker message.
type RefreshMessage struct {
	JobType string `json:"job_type"`

	// Airports and Cities narrow a snapshot_refresh. Empty means the
	// configured targets.
	Airports   []string `json:"airports,omitempty"`
	Passengers []int    `json:"passengers,omitempty"`
	Cities     []string `json:"cities,omitempty"`
}

// Dispatcher runs the job named by a message.
type Dispatcher struct {
	job    *RefreshJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle decodes data and runs its job.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobSnapshotRefresh:
		return d.refresh(ctx, msg)
	case JobHealthCheck:
		return d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (d *Dispatcher) refresh(ctx context.Context, msg RefreshMessage) error {
	job := d.job
	if len(msg.Airports) > 0 || len(msg.Cities) > 0 {
		cfg := d.job.config
		cfg.Airports = msg.Airports
		cfg.Cities = msg.Cities
		cfg.RefreshSnapshots = len(msg.Airports) > 0
		cfg.RefreshFares = len(msg.Cities) > 0
		if len(msg.Passengers) > 0 {
			cfg.Passengers = msg.Passengers
		}
		job = d.job.with(cfg)
	}

	result := job.Run(ctx)
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.Total)
	}
	return nil
}

// healthCheck refreshes a single snapshot to prove upstream connectivity.
func (d *Dispatcher) healthCheck(ctx context.Context) error {
	targets := d.job.config.Targets()
	if len(targets) == 0 || d.job.snapshots == nil {
		d.logger.Debug().Msg("health check skipped, no snapshot target")
		return nil
	}

	cfg := RefreshConfig{
		Airports:         []string{targets[0].Airport},
		Passengers:       []int{1},
		Concurrency:      1,
		Timeout:          10 * time.Second,
		RefreshSnapshots: true,
	}
	result := d.job.with(cfg).Run(ctx)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}
	d.logger.Debug().Msg("health check passed")
	return nil
}

// with returns a job on cfg sharing j's refreshers and metrics.
func (j *RefreshJob) with(cfg RefreshConfig) *RefreshJob {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = j.config.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = j.config.Timeout
	}
	return &RefreshJob{
		config:    cfg,
		logger:    j.logger,
		snapshots: j.snapshots,
		fares:     j.fares,
		metrics:   j.metrics,
	}
}

// PubSubHandler receives worker messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.RefreshJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx ends.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	err := h.dispatcher.Handle(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJob):
		logger.Warn().Err(err).Msg("ignoring message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().Dur("duration", time.Since(start)).Msg("job completed")
		msg.Ack()
	}
}
