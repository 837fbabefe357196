package task

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBidNotFound  = errors.New("ставка не найдена")
	ErrDuplicateBid = errors.New("у исполнителя уже есть активная ставка")
	ErrInvalidCost  = errors.New("стоимость должна быть положительной")
	ErrInvalidTime  = errors.New("срок выполнения должен быть задан")
	ErrBidTerminal  = errors.New("ставка уже принята или отклонена")
	ErrBidSelected  = errors.New("для задачи уже принята ставка")
)

// Ledger - правила изменения ставок одной задачи.
// Работает поверх слайса задачи, поэтому изменения видны в самой задаче.
type Ledger struct {
	bids *[]Bid
}

func (l *Ledger) Bids() []Bid {
	return *l.bids
}

func (l *Ledger) Add(providerID uuid.UUID, cost float64, proposedTime time.Time, now time.Time) (Bid, error) {
	if cost <= 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return Bid{}, ErrInvalidCost
	}
	if proposedTime.IsZero() {
		return Bid{}, ErrInvalidTime
	}
	if l.HasActiveBidFrom(providerID) {
		return Bid{}, ErrDuplicateBid
	}

	bid := Bid{
		ID:           uuid.New(),
		ProviderID:   providerID,
		ProposedCost: cost,
		ProposedTime: proposedTime,
		Status:       BidPending,
		CreatedAt:    now,
	}
	*l.bids = append(*l.bids, bid)
	return bid, nil
}

// Accept принимает pending ставку и отклоняет все остальные.
// accepted и rejected конечны: при уже принятой ставке ничего не меняется.
// rejected содержит только ставки, бывшие pending до вызова.
func (l *Ledger) Accept(bidID uuid.UUID) (Bid, []Bid, error) {
	idx := l.indexOf(bidID)
	if idx < 0 {
		return Bid{}, nil, fmt.Errorf("%w: %s", ErrBidNotFound, bidID)
	}
	if _, ok := l.Accepted(); ok {
		return Bid{}, nil, ErrBidSelected
	}

	bids := *l.bids
	if bids[idx].Status.Terminal() {
		return Bid{}, nil, fmt.Errorf("%w: %s", ErrBidTerminal, bids[idx].Status)
	}

	rejected := []Bid{}
	for i := range bids {
		if i == idx {
			bids[i].Status = BidAccepted
			continue
		}
		if bids[i].Status == BidPending {
			rejected = append(rejected, bids[i])
		}
		bids[i].Status = BidRejected
	}
	for i := range rejected {
		rejected[i].Status = BidRejected
	}
	return bids[idx], rejected, nil
}

func (l *Ledger) Find(bidID uuid.UUID) (Bid, bool) {
	idx := l.indexOf(bidID)
	if idx < 0 {
		return Bid{}, false
	}
	return (*l.bids)[idx], true
}

func (l *Ledger) Accepted() (Bid, bool) {
	for _, b := range *l.bids {
		if b.Status == BidAccepted {
			return b, true
		}
	}
	return Bid{}, false
}

func (l *Ledger) HasBidFrom(providerID uuid.UUID) bool {
	for _, b := range *l.bids {
		if b.ProviderID == providerID {
			return true
		}
	}
	return false
}

// HasActiveBidFrom - есть pending или accepted ставка исполнителя
func (l *Ledger) HasActiveBidFrom(providerID uuid.UUID) bool {
	for _, b := range *l.bids {
		if b.ProviderID == providerID && b.Status != BidRejected {
			return true
		}
	}
	return false
}

// CheckInvariant - не больше одной принятой ставки
func (l *Ledger) CheckInvariant() error {
	accepted := 0
	for _, b := range *l.bids {
		if b.Status == BidAccepted {
			accepted++
		}
	}
	if accepted > 1 {
		return fmt.Errorf("принято ставок: %d", accepted)
	}
	return nil
}

func (l *Ledger) indexOf(bidID uuid.UUID) int {
	for i, b := range *l.bids {
		if b.ID == bidID {
			return i
		}
	}
	return -1
}
