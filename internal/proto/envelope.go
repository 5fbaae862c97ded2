package proto

import (
	"encoding/json"
	"fmt"
)

// Envelope is the request shape carried by lobby control sockets.
type Envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Response is the reply shape for lobby control requests. Status is either
// "ok" or "error"; pushes reuse the Envelope shape and expect no reply.
type Response struct {
	Status string          `json:"status"`
	Action string          `json:"action,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// StatusOK and StatusError are the two admissible response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON marshals the value and sends it as a single frame.
func (c *Conn) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return c.WriteFrame(payload)
}

// ReadEnvelope receives one frame and decodes it as a request envelope.
func (c *Conn) ReadEnvelope() (Envelope, error) {
	payload, err := c.ReadFrame()
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// ReadJSON receives one frame and decodes it into the provided value.
func (c *Conn) ReadJSON(v any) error {
	payload, err := c.ReadFrame()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

// MarshalEnvelope encodes an action plus payload as one envelope frame body.
func MarshalEnvelope(action string, data any) ([]byte, error) {
	env := Envelope{Action: action}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s data: %w", action, err)
		}
		env.Data = payload
	}
	return json.Marshal(env)
}

// OK builds a success response with the marshalled data payload.
func OK(action string, data any) Response {
	return respond(StatusOK, action, data)
}

// Error builds an error response carrying a machine-readable reason.
func Error(action, reason string) Response {
	return respond(StatusError, action, map[string]string{"reason": reason})
}

func respond(status, action string, data any) Response {
	resp := Response{Status: status, Action: action}
	if data == nil {
		return resp
	}
	//1.- Encode eagerly so marshal failures surface as error responses instead
	// of broken frames on the wire.
	payload, err := json.Marshal(data)
	if err != nil {
		resp.Status = StatusError
		resp.Data, _ = json.Marshal(map[string]string{"reason": "encode_failed"})
		return resp
	}
	resp.Data = payload
	return resp
}
