// Package relay implements the real-time delivery pipeline: connection
// lifecycle, session authentication, message ingest and fan-out.
package relay

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sealdm/sealdm/internal/logging"
	"github.com/sealdm/sealdm/internal/server/auth"
	"github.com/sealdm/sealdm/internal/server/cache"
	"github.com/sealdm/sealdm/internal/server/models"
	"github.com/sealdm/sealdm/internal/server/repositories/repomanager"
)

type Relay struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	registry  *Registry
	sync      *cache.Sync
	logger    logging.Logger
	jwtSecret []byte
	timeout   time.Duration
	now       func() time.Time
}

func New(db *sql.DB, repos repomanager.RepositoryManager, registry *Registry,
	sync *cache.Sync, logger logging.Logger, secretKey string, callTimeout time.Duration) *Relay {
	return &Relay{
		db:        db,
		repos:     repos,
		registry:  registry,
		sync:      sync,
		logger:    logger.With("module", "relay"),
		jwtSecret: []byte(secretKey),
		timeout:   callTimeout,
		now:       time.Now,
	}
}

// Serve drives one connection until its transport fails or an auth error
// closes it. The first accepted frame must be an auth frame; everything
// afterwards flows through the ingest pipeline.
func (r *Relay) Serve(conn Conn) {
	client := newClient(conn)
	go client.writePump()

	log := r.logger.With("connID", uuid.NewString())
	log.Debug(context.Background(), "connection opened")

	defer func() {
		if id := client.userID; id != "" {
			r.registry.Deregister(id, client)
		}
		client.close()
		log.Debug(context.Background(), "connection closed", "userID", client.userID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			client.enqueue(errorFrame("invalid frame"))
			continue
		}

		if !r.dispatch(client, &frame) {
			return
		}
	}
}

// dispatch handles one inbound frame. A false return closes the connection.
func (r *Relay) dispatch(client *Client, frame *Frame) bool {
	switch frame.Type {
	case FrameAuth:
		return r.handleAuth(client, frame)
	case FrameMessage:
		if client.userID == "" {
			client.enqueue(errorFrame("authentication required"))
			return true
		}
		r.handleMessage(client, frame)
		return true
	default:
		client.enqueue(errorFrame("unknown frame type"))
		return true
	}
}

func (r *Relay) handleAuth(client *Client, frame *Frame) bool {
	// a second auth frame on an authenticated connection is a no-op
	if client.userID != "" {
		return true
	}

	userID, err := auth.ParseUserID(frame.Token, r.jwtSecret)
	if err != nil {
		r.logger.Warn(context.Background(), "authentication failed", "error", err)
		client.enqueue(authErrorFrame("authentication failed"))
		return false
	}

	client.userID = userID
	r.registry.Register(userID, client)
	client.enqueue(authSuccessFrame("authenticated"))
	r.logger.Info(context.Background(), "client authenticated", "userID", userID)
	return true
}

// handleMessage runs the ingest pipeline: validate, persist, update caches,
// fan out, ack. Persistence is the durability point: its failure aborts the
// operation, while cache failures only degrade.
func (r *Relay) handleMessage(client *Client, frame *Frame) {
	forSender, err := models.DecodeEnvelope(frame.ContentForSender)
	if err == nil {
		var forReceiver models.Envelope
		forReceiver, err = models.DecodeEnvelope(frame.ContentForReceiver)
		if err == nil && frame.ReceiverID != "" {
			r.ingest(client, frame.ReceiverID, forSender, forReceiver)
			return
		}
	}
	client.enqueue(errorFrame("invalid content format"))
}

func (r *Relay) ingest(client *Client, receiverID string, forSender, forReceiver models.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	senderID := client.userID

	msg, err := r.repos.Messages(r.db).Create(ctx, &models.Message{
		SenderID:           senderID,
		ReceiverID:         receiverID,
		ContentForSender:   forSender,
		ContentForReceiver: forReceiver,
		Timestamp:          r.now().UTC(),
	})
	if err != nil {
		r.logger.Error(ctx, "persisting message failed", "error", err, "senderID", senderID)
		client.enqueue(errorFrame("failed to send message"))
		return
	}

	senderView := msg.ViewFor(senderID)
	receiverView := msg.ViewFor(receiverID)

	// cache updates are advisory: log and move on
	if err := r.sync.PrependHistory(ctx, cache.HistoryKey(senderID, receiverID, senderID), senderView); err != nil {
		r.logger.Warn(ctx, "viewer cache update failed", "error", err, "viewerID", senderID)
	}
	if err := r.sync.PrependHistory(ctx, cache.HistoryKey(senderID, receiverID, receiverID), receiverView); err != nil {
		r.logger.Warn(ctx, "viewer cache update failed", "error", err, "viewerID", receiverID)
	}

	go r.invalidateChatLists(senderID, receiverID)

	if receiver, ok := r.registry.Lookup(receiverID); ok {
		receiver.enqueue(messageFrame(receiverView))
	}
	// echo to the sender's registered connection for multi-device consistency
	if sender, ok := r.registry.Lookup(senderID); ok {
		sender.enqueue(messageFrame(senderView))
	}

	// the ack reflects persistence, not delivery
	client.enqueue(sentAckFrame(msg.ID))
}

// invalidateChatLists is a fire-and-forget side effect: its failure is
// logged and never reaches the sender's response path.
func (r *Relay) invalidateChatLists(viewerIDs ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sync.InvalidateChatLists(ctx, viewerIDs...); err != nil {
		r.logger.Warn(ctx, "chat list invalidation failed", "error", err)
	}
}
