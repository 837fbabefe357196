package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Task struct {
	UUID               uuid.UUID  `json:"uuid" db:"id"`
	OwnerID            uuid.UUID  `json:"owner_id" db:"owner_id"`
	Title              string     `json:"title" db:"title"`
	Description        string     `json:"description" db:"description"`
	Category           string     `json:"category" db:"category"`
	City               string     `json:"city" db:"city"`
	State              string     `json:"state" db:"state"`
	ImageRef           string     `json:"image_ref" db:"image_ref"`
	Status             Status     `json:"status" db:"status"`
	Bids               []Bid      `json:"bids" db:"-"`
	SelectedProviderID *uuid.UUID `json:"selected_provider_id,omitempty" db:"selected_provider_id"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Rating             *Rating    `json:"rating,omitempty" db:"-"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty" db:"updated_at,omitempty"`
	Version            int        `json:"version" db:"version"`
}

type Rating struct {
	Score   int       `json:"score"`
	Review  string    `json:"review"`
	RatedAt time.Time `json:"rated_at"`
}

type Status string

const StatusOpen Status = "open"
const StatusAssigned Status = "assigned"
const StatusCompleted Status = "completed"

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusAssigned || s == StatusCompleted
}

// Draft - пользовательские поля новой задачи
type Draft struct {
	Title       string
	Description string
	Category    string
	City        string
	State       string
	ImageRef    string
}

// Normalize обрезает пробелы и возвращает имя первого пустого обязательного поля
func (d Draft) Normalize() (Draft, string) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)
	d.City = strings.TrimSpace(d.City)
	d.State = strings.TrimSpace(d.State)
	d.ImageRef = strings.TrimSpace(d.ImageRef)

	required := []struct {
		field string
		value string
	}{
		{"title", d.Title},
		{"description", d.Description},
		{"category", d.Category},
		{"city", d.City},
		{"state", d.State},
	}
	for _, r := range required {
		if r.value == "" {
			return d, r.field
		}
	}
	return d, ""
}

func New(ownerID uuid.UUID, draft Draft, options ...TaskOption) *Task {
	t := &Task{
		UUID:        uuid.New(),
		OwnerID:     ownerID,
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		City:        draft.City,
		State:       draft.State,
		ImageRef:    draft.ImageRef,
		Status:      StatusOpen,
		Bids:        []Bid{},
		CreatedAt:   time.Now(),
		Version:     1,
	}
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Task) Ledger() *Ledger {
	return &Ledger{bids: &t.Bids}
}

func (t *Task) IsOwner(id uuid.UUID) bool {
	return id != uuid.Nil && t.OwnerID == id
}

func (t *Task) IsSelectedProvider(id uuid.UUID) bool {
	return id != uuid.Nil && t.SelectedProviderID != nil && *t.SelectedProviderID == id
}

// InvolvesProvider - у исполнителя есть ставка на задачу или он выбран
func (t *Task) InvolvesProvider(id uuid.UUID) bool {
	return t.IsSelectedProvider(id) || t.Ledger().HasBidFrom(id)
}

// Clone - глубокая копия, хранилища отдают наружу только копии
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Bids = make([]Bid, len(t.Bids))
	copy(c.Bids, t.Bids)
	if t.SelectedProviderID != nil {
		id := *t.SelectedProviderID
		c.SelectedProviderID = &id
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.UpdatedAt != nil {
		at := *t.UpdatedAt
		c.UpdatedAt = &at
	}
	if t.Rating != nil {
		r := *t.Rating
		c.Rating = &r
	}
	return &c
}

var ErrInvariant = errors.New("нарушен инвариант задачи")

// CheckInvariants проверяет согласованность статуса, ставок, исполнителя и оценки
func (t *Task) CheckInvariants() error {
	if !t.Status.Valid() {
		return fmt.Errorf("%w: неизвестный статус %q", ErrInvariant, t.Status)
	}

	if err := t.Ledger().CheckInvariant(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvariant, err)
	}

	if t.Rating != nil && t.Status != StatusCompleted {
		return fmt.Errorf("%w: оценка у задачи в статусе %s", ErrInvariant, t.Status)
	}

	if (t.CompletedAt != nil) != (t.Status == StatusCompleted) {
		return fmt.Errorf("%w: completed_at не соответствует статусу %s", ErrInvariant, t.Status)
	}

	assigned := t.Status == StatusAssigned || t.Status == StatusCompleted
	if (t.SelectedProviderID != nil) != assigned {
		return fmt.Errorf("%w: selected_provider_id не соответствует статусу %s", ErrInvariant, t.Status)
	}

	accepted, ok := t.Ledger().Accepted()
	if ok != assigned {
		return fmt.Errorf("%w: принятая ставка не соответствует статусу %s", ErrInvariant, t.Status)
	}
	if !assigned {
		return nil
	}

	if accepted.ProviderID != *t.SelectedProviderID {
		return fmt.Errorf("%w: исполнитель не совпадает с принятой ставкой", ErrInvariant)
	}
	for _, b := range t.Bids {
		if b.Status == BidPending {
			return fmt.Errorf("%w: ставка %s осталась pending после выбора", ErrInvariant, b.ID)
		}
	}
	return nil
}
