package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sealdm/sealdm/internal/common"
)

// Envelope is an opaque hybrid-encryption ciphertext bundle. The relay never
// interprets any of its fields; it only checks their shape before persisting.
type Envelope struct {
	IV           string `json:"iv"`
	EncryptedKey string `json:"encryptedKey"`
	Ciphertext   string `json:"ciphertext"`
	Tag          string `json:"tag"`
}

// envelopeWire detects missing fields: a nil pointer after unmarshalling
// means the key was absent, which a plain string field cannot express.
type envelopeWire struct {
	IV           *string `json:"iv"`
	EncryptedKey *string `json:"encryptedKey"`
	Ciphertext   *string `json:"ciphertext"`
	Tag          *string `json:"tag"`
}

// DecodeEnvelope parses raw into an Envelope. Clients may send the envelope
// either as a JSON object or as a JSON string containing serialized JSON;
// the string form is unwrapped first. An envelope is valid iff all four
// fields are present and are strings. Any other shape yields
// common.ErrorValidation.
func DecodeEnvelope(raw json.RawMessage) (Envelope, error) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("empty envelope: %w", common.ErrorValidation)
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return Envelope{}, fmt.Errorf("unwrapping envelope string: %w", common.ErrorValidation)
		}
		b = []byte(s)
	}

	var w envelopeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", common.ErrorValidation)
	}
	if w.IV == nil || w.EncryptedKey == nil || w.Ciphertext == nil || w.Tag == nil {
		return Envelope{}, fmt.Errorf("incomplete envelope: %w", common.ErrorValidation)
	}

	return Envelope{
		IV:           *w.IV,
		EncryptedKey: *w.EncryptedKey,
		Ciphertext:   *w.Ciphertext,
		Tag:          *w.Tag,
	}, nil
}
