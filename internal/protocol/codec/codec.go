package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"voip_chat/internal/model"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

type wireEnvelope struct {
	Code      *model.Code     `json:"code"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	PublicKey string          `json:"public_key,omitempty"`
}

// Encode serializes env as UTF-8 JSON.
func Encode(env model.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.Code, err)
	}
	return data, nil
}

// Decode is the inverse of Encode. It rejects invalid JSON, trailing data and a missing code.
func Decode(data []byte) (model.Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var w wireEnvelope
	if err := dec.Decode(&w); err != nil {
		return model.Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if dec.More() {
		return model.Envelope{}, fmt.Errorf("%w: trailing data", ErrMalformedEnvelope)
	}
	if w.Code == nil {
		return model.Envelope{}, fmt.Errorf("%w: missing code", ErrMalformedEnvelope)
	}

	env := model.Envelope{Code: *w.Code, PublicKey: w.PublicKey}
	if len(w.Payload) > 0 && !bytes.Equal(w.Payload, []byte("null")) {
		env.Payload = w.Payload
	}
	return env, nil
}

// Bind decodes the envelope payload into v.
func Bind(env model.Envelope, v any) error {
	var raw []byte
	switch p := env.Payload.(type) {
	case nil:
		return fmt.Errorf("%w: %s has no payload", ErrMalformedEnvelope, env.Code)
	case json.RawMessage:
		raw = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		raw = data
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedEnvelope, env.Code, err)
	}
	return nil
}

// Text returns the payload as a string when it is one, e.g. the display name in OK_CONNECT.
func Text(env model.Envelope) string {
	var s string
	if err := Bind(env, &s); err != nil {
		return ""
	}
	return s
}
