package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records one lifecycle action taken against a delivery. Entries
// are append-only; the cancel reason lives here as the note.
type AuditEntry struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DeliveryID int64     `json:"delivery_id" db:"delivery_id"`
	Action     Action    `json:"action" db:"action"`
	ActorID    int64     `json:"actor_id" db:"actor_id"`
	Note       string    `json:"note" db:"note"`
	At         time.Time `json:"at" db:"at"`
}

func newAuditEntry(deliveryID int64, action Action, actorID int64, note string) AuditEntry {
	return AuditEntry{
		ID:         uuid.New(),
		DeliveryID: deliveryID,
		Action:     action,
		ActorID:    actorID,
		Note:       note,
		At:         time.Now().UTC(),
	}
}
