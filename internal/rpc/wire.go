package rpc

import (
	"encoding/json"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
)

// envelope is the reply wrapper carried on the wire. A succeeding call sets
// OK and Data; a failing call carries the error kind and reason so the
// taxonomy survives the hop through the broker.
type envelope struct {
	OK    bool            `json:"ok"`
	Kind  string          `json:"kind,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeReply wraps a handler result for the reply queue. A nil err wraps
// data; a non-nil err wraps its kind and message and ignores data.
func EncodeReply(data any, err error) ([]byte, error) {
	if err != nil {
		return jsoncodec.Marshal(envelope{
			OK:    false,
			Kind:  string(errs.KindOf(err)),
			Error: err.Error(),
		})
	}

	var raw json.RawMessage
	if data != nil {
		encoded, mErr := jsoncodec.Marshal(data)
		if mErr != nil {
			return nil, mErr
		}
		raw = encoded
	}
	return jsoncodec.Marshal(envelope{OK: true, Data: raw})
}

// DecodeReply unwraps a reply payload into out. Errors carried in the
// envelope come back as tagged errors with their original kind.
func DecodeReply(payload []byte, out any) error {
	var env envelope
	if err := jsoncodec.Unmarshal(payload, &env); err != nil {
		return errs.Wrap(errs.KindRPCTransport, "malformed reply payload", err)
	}
	if !env.OK {
		return errs.FromWire(env.Kind, env.Error)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := jsoncodec.Unmarshal(env.Data, out); err != nil {
		return errs.Wrap(errs.KindRPCTransport, "malformed reply data", err)
	}
	return nil
}
