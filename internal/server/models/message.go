package models

import "time"

// Message is the durable record of one direct message. It carries two
// envelopes for the same plaintext: one decryptable by the sender's key
// material and one by the receiver's. The store is authoritative; caches
// only ever hold projections of this record.
type Message struct {
	ID                 string
	SenderID           string
	ReceiverID         string
	ContentForSender   Envelope
	ContentForReceiver Envelope
	Timestamp          time.Time
	Read               bool
}

// HistoryItem is a message projected to one participant's view: only the
// envelope that participant can decrypt is exposed.
type HistoryItem struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
	Content   Envelope  `json:"content"`
}

// ViewFor projects the message to the given viewer. The counterpart's
// ciphertext never leaves the record.
func (m *Message) ViewFor(viewerID string) HistoryItem {
	content := m.ContentForReceiver
	if viewerID == m.SenderID {
		content = m.ContentForSender
	}
	return HistoryItem{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Timestamp: m.Timestamp,
		Content:   content,
	}
}
