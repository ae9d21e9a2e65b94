package relay

import (
	"encoding/json"
	"time"

	"github.com/sealdm/sealdm/internal/server/models"
)

// Inbound frame types.
const (
	FrameAuth    = "auth"
	FrameMessage = "message"
)

// Outbound frame types.
const (
	FrameAuthSuccess = "auth_success"
	FrameAuthError   = "auth_error"
	FrameSentAck     = "message_sent_ack"
	FrameError       = "error"
)

// Frame is one inbound message on the connection, dispatched on Type.
// Envelope fields stay raw here: their shape is checked by the ingest
// pipeline, not the transport.
type Frame struct {
	Type               string          `json:"type"`
	Token              string          `json:"token,omitempty"`
	ReceiverID         string          `json:"receiverId,omitempty"`
	ContentForSender   json.RawMessage `json:"contentForSender,omitempty"`
	ContentForReceiver json.RawMessage `json:"contentForReceiver,omitempty"`
}

type statusFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ackFrame struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

type deliveryFrame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	SenderID  string          `json:"senderId"`
	Content   models.Envelope `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err) // outbound frames hold only marshal-safe values
	}
	return b
}

func errorFrame(msg string) []byte {
	return mustMarshal(statusFrame{Type: FrameError, Message: msg})
}

func authSuccessFrame(msg string) []byte {
	return mustMarshal(statusFrame{Type: FrameAuthSuccess, Message: msg})
}

func authErrorFrame(msg string) []byte {
	return mustMarshal(statusFrame{Type: FrameAuthError, Message: msg})
}

func sentAckFrame(messageID string) []byte {
	return mustMarshal(ackFrame{Type: FrameSentAck, MessageID: messageID})
}

func messageFrame(item models.HistoryItem) []byte {
	return mustMarshal(deliveryFrame{
		Type:      FrameMessage,
		ID:        item.ID,
		SenderID:  item.SenderID,
		Content:   item.Content,
		Timestamp: item.Timestamp,
	})
}
