package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// PushRequest is the canonical notification request. Both inbound envelope
// shapes are normalized into it before anything else looks at them.
type PushRequest struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]any

	// CorrelationID is set by the HTTP layer, never decoded from the body.
	CorrelationID string
}

// pushFields is the field set shared by the direct and the record envelope.
type pushFields struct {
	UserID string         `json:"user_id"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Type   *string        `json:"type"`
	Data   map[string]any `json:"data"`
}

// pushEnvelope accepts either a direct invocation or a database change event
// whose record carries the notification row.
type pushEnvelope struct {
	pushFields
	Record *pushFields `json:"record"`
}

// DecodePushRequest parses an inbound body and normalizes it. A present
// record always wins over top-level fields; record.type is copied into
// data.type so clients can route on it.
func DecodePushRequest(r io.Reader) (*PushRequest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrInvalidBody
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env pushEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	src := env.pushFields
	if env.Record != nil {
		src = *env.Record
	}

	data := src.Data
	if data == nil {
		data = make(map[string]any)
	}
	if env.Record != nil && src.Type != nil && *src.Type != "" {
		data["type"] = *src.Type
	}

	req := &PushRequest{
		UserID: src.UserID,
		Title:  src.Title,
		Body:   src.Body,
		Data:   data,
	}
	return req, nil
}

// Validate checks the request before any downstream step runs.
func (r *PushRequest) Validate() error {
	if r.UserID == "" {
		return ErrMissingRecipient
	}
	return nil
}

// DeliveryOutcome is the push backend's verdict, relayed to the caller as-is.
type DeliveryOutcome struct {
	StatusCode  int
	ContentType string
	Body        string
}

// DeliveryRecord is the audit row written for every delivery attempt.
type DeliveryRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	StatusCode    int       `json:"status_code"`
	Response      string    `json:"response"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}
