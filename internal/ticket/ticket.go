// Package ticket renders tickets for reservations by joining the
// reservation with the catalog events it references.
package ticket

import (
	"context"
	"time"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/rpc"
)

// ReservationData is the slice of the reservation record the ticket needs.
type ReservationData struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"ownerId"`
	ResourceIDs []string `json:"resourceIds"`
	Status      string   `json:"status"`
}

// EventData is the slice of the catalog event the ticket needs.
type EventData struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location,omitempty"`
	StartsAt time.Time `json:"startsAt"`
}

// Ticket is a rendered ticket document.
type Ticket struct {
	ReservationID string      `json:"reservationId"`
	Events        []EventData `json:"events"`
	Document      []byte      `json:"document"`
	ContentType   string      `json:"contentType"`
	GeneratedAt   time.Time   `json:"generatedAt"`
}

// DocumentRenderer turns reservation and event data into the ticket
// document bytes.
type DocumentRenderer interface {
	Render(principal *auth.Principal, res *ReservationData, events []EventData) ([]byte, string, error)
}

// Service generates tickets. Reservation and event data come over the
// broker; the caller's credential is propagated so the reservation
// lookup enforces ownership.
type Service struct {
	client   *rpc.Client
	renderer DocumentRenderer
	timeout  time.Duration
	now      func() time.Time
}

func NewService(client *rpc.Client, renderer DocumentRenderer, timeout time.Duration) (*Service, error) {
	if client == nil {
		return nil, errs.New(errs.KindInternal, "rpc client is required")
	}
	if renderer == nil {
		renderer = NewTextRenderer()
	}
	return &Service{
		client:   client,
		renderer: renderer,
		timeout:  timeout,
		now:      time.Now,
	}, nil
}

type reservationRequest struct {
	ID string `json:"id"`
}

type eventRequest struct {
	ID string `json:"id"`
}

// Generate fetches the reservation and every referenced event, then
// renders the ticket. A reservation pointing at a vanished event is a
// not-found failure: tickets never silently omit events.
func (s *Service) Generate(ctx context.Context, principal *auth.Principal, reservationID string) (*Ticket, error) {
	if principal == nil {
		return nil, errs.Unauthorized("ticket generation requires an authenticated caller")
	}
	if reservationID == "" {
		return nil, errs.Validation("reservation id is required")
	}

	var res ReservationData
	err := s.client.Invoke(ctx, "reservation", "get", reservationRequest{ID: reservationID}, &res, s.timeout)
	if err != nil {
		return nil, err
	}

	events := make([]EventData, 0, len(res.ResourceIDs))
	for _, eventID := range res.ResourceIDs {
		var event *EventData
		err := s.client.Invoke(ctx, "catalog", "get", eventRequest{ID: eventID}, &event, s.timeout)
		if err != nil {
			return nil, err
		}
		if event == nil {
			return nil, errs.NotFound("event %s referenced by reservation %s not found", eventID, reservationID)
		}
		events = append(events, *event)
	}

	document, contentType, err := s.renderer.Render(principal, &res, events)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "render ticket document", err)
	}
	return &Ticket{
		ReservationID: reservationID,
		Events:        events,
		Document:      document,
		ContentType:   contentType,
		GeneratedAt:   s.now().UTC(),
	}, nil
}
