package model

import "time"

type (
	// Envelope is one request or response. Payload holds a json.RawMessage after decoding and
	// any JSON-marshalable value when built locally.
	Envelope struct {
		Code      Code   `json:"code"`
		Payload   any    `json:"payload,omitempty"`
		PublicKey string `json:"public_key,omitempty"`
	}

	// Identified is embedded by every request that needs routing context.
	Identified struct {
		ID string `json:"id"`
	}

	ConnectRequest struct {
		ID        string `json:"id"`
		Username  string `json:"username"`
		PublicKey string `json:"public_key,omitempty"`
	}

	SendTextRequest struct {
		Identified
		From     string `json:"from,omitempty"`
		To       string `json:"to"`
		Message  string `json:"message"`
		Datetime string `json:"datetime,omitempty"`
	}

	RetrieveRequest struct {
		Identified
		FromDate string `json:"from_date,omitempty"`
		ToDate   string `json:"to_date,omitempty"`
		FromUser string `json:"from_user,omitempty"`
	}

	CallRequest struct {
		Identified
		To string `json:"to"`
	}

	// TextEvent is pushed to a live recipient.
	TextEvent struct {
		From     string `json:"from"`
		Message  string `json:"message"`
		Datetime string `json:"datetime"`
	}

	CallEvent struct {
		From string `json:"from"`
	}

	Friend struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Online   bool   `json:"online"`
	}

	MessagesResponse struct {
		Messages []Record `json:"messages"`
	}

	ServerInfo struct {
		Address   string    `json:"address"`
		Online    int       `json:"online"`
		Roster    int       `json:"roster"`
		StartedAt time.Time `json:"started_at"`
	}
)

func NewEnvelope(code Code, payload any) Envelope {
	return Envelope{Code: code, Payload: payload}
}
