package task

import (
	"time"

	"github.com/google/uuid"
)

type Bid struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ProviderID   uuid.UUID `json:"provider_id" db:"provider_id"`
	ProposedCost float64   `json:"proposed_cost" db:"proposed_cost"`
	ProposedTime time.Time `json:"proposed_time" db:"proposed_time"`
	Status       BidStatus `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type BidStatus string

const BidPending BidStatus = "pending"
const BidAccepted BidStatus = "accepted"
const BidRejected BidStatus = "rejected"

func (s BidStatus) Terminal() bool {
	return s == BidAccepted || s == BidRejected
}
