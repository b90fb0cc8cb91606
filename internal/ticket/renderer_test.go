package ticket

import (
	"strings"
	"testing"
	"time"

	"github.com/bookhive/bookhive/internal/auth"
)

func TestTextRendererIncludesEveryEvent(t *testing.T) {
	renderer := NewTextRenderer()
	principal := &auth.Principal{ID: "u1", Email: "holder@example.com"}
	res := &ReservationData{ID: "r1", OwnerID: "u1", Status: "confirmed"}
	events := []EventData{
		{ID: "e1", Name: "Go Conference", Location: "Berlin", StartsAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "e2", Name: "Workshop Day", StartsAt: time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)},
	}

	doc, contentType, err := renderer.Render(principal, res, events)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.HasPrefix(contentType, "text/plain") {
		t.Fatalf("unexpected content type %q", contentType)
	}

	text := string(doc)
	for _, want := range []string{"r1", "holder@example.com", "confirmed", "Go Conference", "Berlin", "Workshop Day"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected ticket to contain %q:\n%s", want, text)
		}
	}
}
