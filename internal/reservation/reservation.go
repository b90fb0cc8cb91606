// Package reservation implements the booking saga: creation and lifecycle
// of reservations, cross-service validation of the owner and the referenced
// resources, and outcome notifications.
package reservation

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Metadata keys with saga-level meaning.
const (
	MetadataCancellationReason = "cancellationReason"
	MetadataNotes              = "notes"
)

// Reservation is the one mutable shared record in the core. It is only
// mutated by the saga under a held record lock and never physically
// deleted; cancelled and completed are soft-terminal states.
type Reservation struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"ownerId"`
	ResourceIDs []string          `json:"resourceIds"`
	Status      Status            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	CancelledAt *time.Time        `json:"cancelledAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// Clone returns a deep copy so store implementations never hand out
// aliased state.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	clone := *r
	clone.ResourceIDs = append([]string(nil), r.ResourceIDs...)
	if r.Metadata != nil {
		clone.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		clone.CancelledAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}

// Envelope is the notification published after every state transition.
// Delivery is best-effort, at-least-once.
type Envelope struct {
	EventKind      string    `json:"eventKind"`
	ReservationID  string    `json:"reservationId"`
	OwnerID        string    `json:"ownerId"`
	ResourceIDs    []string  `json:"resourceIds"`
	PreviousStatus Status    `json:"previousStatus,omitempty"`
	NewStatus      Status    `json:"newStatus,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Event kinds carried in notification envelopes.
const (
	EventCreated = "created"
	EventUpdated = "updated"
)
