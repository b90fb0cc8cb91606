package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfTaggedError(t *testing.T) {
	err := Conflict("reservation r1 is already cancelled")
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict kind, got %v", KindOf(err))
	}
	if !IsKind(err, KindConflict) {
		t.Fatal("expected IsKind to match")
	}
	if IsKind(nil, KindConflict) {
		t.Fatal("nil error must not match any kind")
	}
}

func TestKindOfWrappedError(t *testing.T) {
	inner := NotFound("event e1 not found")
	wrapped := fmt.Errorf("checking resources: %w", inner)
	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected kind to survive wrapping, got %v", KindOf(wrapped))
	}
}

func TestUntaggedErrorIsInternal(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("untagged errors must report internal")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindInternal, "insert reservation", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected the cause in the chain")
	}
}

func TestFromWire(t *testing.T) {
	err := FromWire("unauthorized", "caller is not the owner")
	if err.Kind != KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err.Kind)
	}

	// Unknown kinds degrade to internal rather than being trusted.
	err = FromWire("martian", "boom")
	if err.Kind != KindInternal {
		t.Fatalf("expected internal for unknown wire kind, got %v", err.Kind)
	}
}

func TestConfigValidationError(t *testing.T) {
	if NewConfigValidationError(nil) != nil {
		t.Fatal("nil error must stay nil")
	}

	cause := errors.New("route table is empty")
	err := NewConfigValidationError(cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected the cause in the chain")
	}
	var cfgErr ConfigValidationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigValidationError, got %T", err)
	}
}
