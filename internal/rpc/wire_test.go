package rpc

import (
	"testing"

	"github.com/bookhive/bookhive/internal/errs"
)

func TestReplyCarriesData(t *testing.T) {
	body, err := EncodeReply(map[string]string{"id": "42"}, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var out map[string]string
	if err := DecodeReply(body, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out["id"] != "42" {
		t.Fatalf("expected id 42, got %q", out["id"])
	}
}

func TestReplyPreservesErrorKind(t *testing.T) {
	body, err := EncodeReply(nil, errs.Conflict("reservation r1 is already cancelled"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decodeErr := DecodeReply(body, nil)
	if decodeErr == nil {
		t.Fatal("expected an error from the reply")
	}
	if !errs.IsKind(decodeErr, errs.KindConflict) {
		t.Fatalf("expected conflict kind, got %v", errs.KindOf(decodeErr))
	}
}

func TestReplyUnknownKindDegradesToInternal(t *testing.T) {
	decodeErr := DecodeReply([]byte(`{"ok":false,"kind":"martian","error":"boom"}`), nil)
	if !errs.IsKind(decodeErr, errs.KindInternal) {
		t.Fatalf("expected internal kind, got %v", errs.KindOf(decodeErr))
	}
}

func TestMalformedReplyIsTransportError(t *testing.T) {
	decodeErr := DecodeReply([]byte("{not json"), nil)
	if !errs.IsKind(decodeErr, errs.KindRPCTransport) {
		t.Fatalf("expected transport kind, got %v", errs.KindOf(decodeErr))
	}
}
