package actions

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Envelope wraps one action response: {"action": <name>, "response": <payload>}
type Envelope struct {
	Action   string          `json:"action"`
	Response json.RawMessage `json:"response"`
}

// NewEnvelope encodes a response for the named action
func NewEnvelope(name string, response any) (Envelope, error) {
	raw, err := json.Marshal(response)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "failed to encode '%s' response", name)
	}
	return Envelope{Action: name, Response: raw}, nil
}

// Bytes returns the wire form of the envelope
func (e Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses an envelope and its typed response
func DecodeEnvelope[T any](data []byte) (string, T, error) {
	var (
		env Envelope
		out T
	)
	if err := json.Unmarshal(data, &env); err != nil {
		return "", out, errors.Wrap(err, "failed to decode envelope")
	}
	if err := json.Unmarshal(env.Response, &out); err != nil {
		return env.Action, out, errors.Wrapf(err, "failed to decode '%s' response", env.Action)
	}
	return env.Action, out, nil
}
