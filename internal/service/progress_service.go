package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/observability"
)

const (
	progressSendBufferSize = 32
	progressNATSSubject    = "nilai.grading.progress"
	progressRedisChannel   = "nilai:grading:progress"
	progressQueueGroup     = "nilai-progress"
)

// ProgressConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ProgressConnectionOptions struct {
	BatchID uint
	UserID  string
}

// ProgressService fans grading run updates out to websocket and SSE clients.
// Events published on one node reach clients connected to every node through
// the redis channel and the NATS subject.
type ProgressService interface {
	Publish(ctx context.Context, event dto.ProgressEvent)
	Subscribe(batchID uint) (<-chan dto.ProgressEvent, func())
	ServeConnection(conn *websocket.Conn, opts ProgressConnectionOptions)
	Start(ctx context.Context)
}

type progressService struct {
	redis  *redis.Client
	nats   *nats.Conn
	logger zerolog.Logger
	tracer trace.Tracer
	hub    *progressHub
	nodeID string
}

// progressHub keeps track of connected clients per batch. Batch 0 is the
// firehose: its clients receive events for every batch.
type progressHub struct {
	mu      sync.RWMutex
	batches map[uint]map[*progressClient]struct{}
	log     zerolog.Logger
}

type progressClient struct {
	conn      *websocket.Conn
	transport string
	batchID   uint
	userID    string
	send      chan dto.ProgressEvent
	closed    chan struct{}
	once      sync.Once
	service   *progressService
}

// progressEnvelope wraps an event with the publishing node so each node can
// drop its own messages when they loop back through the brokers.
type progressEnvelope struct {
	Source string            `json:"source"`
	Event  dto.ProgressEvent `json:"event"`
}

// NewProgressService creates the progress fan-out service. Both the redis
// client and the NATS connection may be nil; fan-out then stays node-local.
func NewProgressService(redisClient *redis.Client, natsConn *nats.Conn, logger zerolog.Logger) ProgressService {
	hub := &progressHub{
		batches: make(map[uint]map[*progressClient]struct{}),
		log:     logger.With().Str("component", "progress_hub").Logger(),
	}

	return &progressService{
		redis:  redisClient,
		nats:   natsConn,
		logger: logger.With().Str("component", "progress_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/nilai-go-api/internal/service/progress"),
		hub:    hub,
		nodeID: uuid.NewString(),
	}
}

func (s *progressService) Start(ctx context.Context) {
	if s.redis != nil {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil {
		go s.consumeNATS(ctx)
	}
}

func (s *progressService) Publish(ctx context.Context, event dto.ProgressEvent) {
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	attrs := []attribute.KeyValue{
		attribute.Int("progress.batch_id", int(event.BatchID)),
		attribute.String("progress.stage", event.Stage),
	}

	spanCtx, span := s.tracer.Start(ctx, "progress.publish", trace.WithAttributes(attrs...))
	defer span.End()

	s.hub.broadcast(event)

	envelope := progressEnvelope{Source: s.nodeID, Event: event}
	payload, err := json.Marshal(envelope)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Msg("failed to marshal progress event")
		return
	}

	if s.redis != nil {
		if err := s.redis.Publish(spanCtx, progressRedisChannel, payload).Err(); err != nil {
			span.RecordError(err)
			s.logger.Warn().Err(err).Uint("batch_id", event.BatchID).Msg("failed to publish progress event to redis")
		}
	}

	if s.nats != nil {
		if err := s.nats.Publish(progressNATSSubject, payload); err != nil {
			span.RecordError(err)
			s.logger.Warn().Err(err).Uint("batch_id", event.BatchID).Msg("failed to publish progress event to nats")
		}
	}
}

// Subscribe registers an SSE stream for one batch and returns the event
// channel together with a release function the caller must invoke when the
// stream ends.
func (s *progressService) Subscribe(batchID uint) (<-chan dto.ProgressEvent, func()) {
	client := &progressClient{
		transport: "sse",
		batchID:   batchID,
		send:      make(chan dto.ProgressEvent, progressSendBufferSize),
		closed:    make(chan struct{}),
		service:   s,
	}

	s.hub.register(client)
	observability.ProgressClients().WithLabelValues(client.transport).Inc()

	return client.send, client.close
}

func (s *progressService) ServeConnection(conn *websocket.Conn, opts ProgressConnectionOptions) {
	client := &progressClient{
		conn:      conn,
		transport: "websocket",
		batchID:   opts.BatchID,
		userID:    opts.UserID,
		send:      make(chan dto.ProgressEvent, progressSendBufferSize),
		closed:    make(chan struct{}),
		service:   s,
	}

	s.hub.register(client)
	observability.ProgressClients().WithLabelValues(client.transport).Inc()

	go client.writer()
	client.reader()
}

func (s *progressService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, progressRedisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("progress redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *progressService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(progressNATSSubject, progressQueueGroup, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats progress subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain progress nats subscription")
		}
	}()
}

func (s *progressService) handleEvent(data []byte) {
	var envelope progressEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid progress event")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	s.hub.broadcast(envelope.Event)
}

func (h *progressHub) register(client *progressClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.batches[client.batchID]; !exists {
		h.batches[client.batchID] = make(map[*progressClient]struct{})
	}
	h.batches[client.batchID][client] = struct{}{}
	h.log.Debug().Uint("batch_id", client.batchID).Str("transport", client.transport).Str("user_id", client.userID).Msg("progress client connected")
}

func (h *progressHub) unregister(client *progressClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.batches[client.batchID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.batches, client.batchID)
		}
	}
	h.log.Debug().Uint("batch_id", client.batchID).Str("transport", client.transport).Str("user_id", client.userID).Msg("progress client disconnected")
}

func (h *progressHub) broadcast(event dto.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliver(h.batches[event.BatchID], event)
	if event.BatchID != 0 {
		h.deliver(h.batches[0], event)
	}
}

func (h *progressHub) deliver(clients map[*progressClient]struct{}, event dto.ProgressEvent) {
	for client := range clients {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Uint("batch_id", event.BatchID).Str("transport", client.transport).Msg("dropping progress event for slow client")
		}
	}
}

func (c *progressClient) reader() {
	defer c.close()

	// Progress connections are one-way; inbound frames only signal liveness
	// until the peer hangs up.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.service.logger.Debug().Err(err).Uint("batch_id", c.batchID).Msg("progress read loop ended")
			return
		}
	}
}

func (c *progressClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Uint("batch_id", c.batchID).Msg("progress write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Uint("batch_id", c.batchID).Msg("progress ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *progressClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		observability.ProgressClients().WithLabelValues(c.transport).Dec()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
