package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := New(KeyCorrelationID, "corr-1")
	extended := base.With(KeyReplyTo, "test.replies.1")

	if _, ok := base[KeyReplyTo]; ok {
		t.Fatal("With must not mutate the receiver")
	}
	if extended[KeyCorrelationID] != "corr-1" || extended[KeyReplyTo] != "test.replies.1" {
		t.Fatalf("unexpected extended metadata %#v", extended)
	}
}

func TestWithAllMergesEntries(t *testing.T) {
	base := New(KeyCorrelationID, "corr-1")
	merged := base.WithAll(Metadata{KeyEventKind: "created", KeyCorrelationID: "corr-2"})

	if merged[KeyCorrelationID] != "corr-2" {
		t.Fatalf("expected override, got %q", merged[KeyCorrelationID])
	}
	if merged[KeyEventKind] != "created" {
		t.Fatalf("expected merged entry, got %#v", merged)
	}
	if base[KeyCorrelationID] != "corr-1" {
		t.Fatal("WithAll must not mutate the receiver")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	base := New(KeyCorrelationID, "corr-1")
	clone := base.Clone()
	clone[KeyCorrelationID] = "corr-2"
	if base[KeyCorrelationID] != "corr-1" {
		t.Fatal("clone must be independent of the original")
	}
}

func TestWatermillConversionRoundTrip(t *testing.T) {
	md := New(KeyCorrelationID, "corr-1", KeyAuthorization, "Bearer x")
	wm := ToWatermill(md)
	back := FromWatermill(wm)
	if back[KeyCorrelationID] != "corr-1" || back[KeyAuthorization] != "Bearer x" {
		t.Fatalf("unexpected round trip result %#v", back)
	}

	if got := FromWatermill(message.Metadata(nil)); got == nil {
		t.Fatal("nil watermill metadata must convert to an empty map")
	}
}
