package dto

import (
	"taskMarket/internal/models/account"
	"taskMarket/internal/models/task"
	"time"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	City        string `json:"city"`
	State       string `json:"state"`
	ImageRef    string `json:"image_ref,omitempty"`
}

func (r CreateTaskRequest) Draft() task.Draft {
	return task.Draft{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		City:        r.City,
		State:       r.State,
		ImageRef:    r.ImageRef,
	}
}

type PlaceBidRequest struct {
	ProposedCost float64   `json:"proposed_cost"`
	ProposedTime time.Time `json:"proposed_time"`
}

type RateProviderRequest struct {
	Score  int    `json:"score"`
	Review string `json:"review"`
}

type BidResponse struct {
	ID           uuid.UUID `json:"id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	ProposedCost float64   `json:"proposed_cost"`
	ProposedTime time.Time `json:"proposed_time"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type RatingResponse struct {
	Score   int       `json:"score"`
	Review  string    `json:"review,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

type TaskResponse struct {
	UUID               uuid.UUID       `json:"id"`
	OwnerID            uuid.UUID       `json:"owner_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Category           string          `json:"category"`
	City               string          `json:"city"`
	State              string          `json:"state"`
	ImageRef           string          `json:"image_ref,omitempty"`
	Status             string          `json:"status"`
	Bids               []BidResponse   `json:"bids"`
	SelectedProviderID *uuid.UUID      `json:"selected_provider_id,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	Rating             *RatingResponse `json:"rating,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          *time.Time      `json:"updated_at,omitempty"`
	Version            int             `json:"version"`
}

// AccountResponse - публичный профиль, email не отдаётся
type AccountResponse struct {
	ID             uuid.UUID `json:"id"`
	Role           string    `json:"role"`
	Name           string    `json:"name"`
	AverageRating  float64   `json:"average_rating"`
	TotalRatings   int       `json:"total_ratings"`
	CompletedTasks int       `json:"completed_tasks"`
}

func FromBid(b task.Bid) BidResponse {
	return BidResponse{
		ID:           b.ID,
		ProviderID:   b.ProviderID,
		ProposedCost: b.ProposedCost,
		ProposedTime: b.ProposedTime,
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt,
	}
}

func FromTask(t *task.Task) TaskResponse {
	resp := TaskResponse{
		UUID:               t.UUID,
		OwnerID:            t.OwnerID,
		Title:              t.Title,
		Description:        t.Description,
		Category:           t.Category,
		City:               t.City,
		State:              t.State,
		ImageRef:           t.ImageRef,
		Status:             string(t.Status),
		Bids:               make([]BidResponse, len(t.Bids)),
		SelectedProviderID: t.SelectedProviderID,
		CompletedAt:        t.CompletedAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		Version:            t.Version,
	}
	for i, b := range t.Bids {
		resp.Bids[i] = FromBid(b)
	}
	if t.Rating != nil {
		resp.Rating = &RatingResponse{
			Score:   t.Rating.Score,
			Review:  t.Rating.Review,
			RatedAt: t.Rating.RatedAt,
		}
	}
	return resp
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

func FromAccount(a *account.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Role:           string(a.Role),
		Name:           a.Name,
		AverageRating:  a.AverageRating,
		TotalRatings:   a.TotalRatings,
		CompletedTasks: a.CompletedTasks,
	}
}
