package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"taskMarket/internal/logger"
	"taskMarket/internal/models/account"
	"taskMarket/internal/models/task"
	"taskMarket/internal/notify"
	"taskMarket/internal/reputation"
	"taskMarket/internal/repository"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *TaskService) PlaceBid(ctx context.Context, taskID, providerID uuid.UUID, cost float64, proposedTime time.Time) (_ *task.Bid, err error) {
	defer s.observe("place_bid", &err)

	if cost <= 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, NewValidationError("proposed_cost", "стоимость должна быть положительным числом")
	}
	if proposedTime.IsZero() {
		return nil, NewValidationError("proposed_time", "срок выполнения должен быть задан")
	}
	if _, err := s.requireRole(ctx, providerID, account.RoleProvider, "place_bid"); err != nil {
		return nil, err
	}

	var placed task.Bid
	updated, err := s.mutate(ctx, "place_bid", taskID, func(ctx context.Context, tx repository.Tx, t *task.Task) error {
		if t.Status != task.StatusOpen {
			return NewConflict("place_bid", "задача не принимает ставки", ToDetail("status", t.Status))
		}
		bid, err := t.Ledger().Add(providerID, cost, proposedTime, s.now())
		if err != nil {
			return ledgerError("place_bid", err)
		}
		placed = bid
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Service: Ставка размещена",
		zap.String("task_id", taskID.String()),
		zap.String("bid_id", placed.ID.String()),
		zap.String("provider_id", providerID.String()),
		zap.Float64("proposed_cost", placed.ProposedCost))

	s.dispatch(ctx, notify.NewEvent(notify.KindBidPlaced, updated.OwnerID, updated.UUID, map[string]any{
		"bid_id":        placed.ID.String(),
		"provider_id":   providerID.String(),
		"proposed_cost": placed.ProposedCost,
		"proposed_time": placed.ProposedTime,
		"title":         updated.Title,
	}))
	return &placed, nil
}

func (s *TaskService) SelectBid(ctx context.Context, taskID, callerID, bidID uuid.UUID) (_ *task.Task, err error) {
	defer s.observe("select_bid", &err)

	var (
		accepted task.Bid
		rejected []task.Bid
	)
	updated, err := s.mutate(ctx, "select_bid", taskID, func(ctx context.Context, tx repository.Tx, t *task.Task) error {
		if !t.IsOwner(callerID) {
			return NewForbidden("select_bid", "выбрать ставку может только владелец задачи")
		}
		if t.Status != task.StatusOpen {
			return NewConflict("select_bid", "ставка уже выбрана", ToDetail("status", t.Status))
		}
		bid, others, err := t.Ledger().Accept(bidID)
		if errors.Is(err, task.ErrBidNotFound) {
			return NewNotFound("ставка", bidID.String())
		}
		if err != nil {
			return ledgerError("select_bid", err)
		}
		providerID := bid.ProviderID
		t.SelectedProviderID = &providerID
		t.Status = task.StatusAssigned
		accepted, rejected = bid, others
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Service: Ставка выбрана",
		zap.String("task_id", taskID.String()),
		zap.String("bid_id", accepted.ID.String()),
		zap.String("provider_id", accepted.ProviderID.String()),
		zap.Int("rejected", len(rejected)))

	events := make([]notify.Event, 0, len(rejected)+1)
	events = append(events, notify.NewEvent(notify.KindBidAccepted, accepted.ProviderID, updated.UUID, map[string]any{
		"bid_id": accepted.ID.String(),
		"title":  updated.Title,
	}))
	for _, bid := range rejected {
		events = append(events, notify.NewEvent(notify.KindBidRejected, bid.ProviderID, updated.UUID, map[string]any{
			"bid_id": bid.ID.String(),
			"title":  updated.Title,
		}))
	}
	s.dispatch(ctx, events...)
	return updated, nil
}

func (s *TaskService) CompleteTask(ctx context.Context, taskID, callerID uuid.UUID) (_ *task.Task, err error) {
	defer s.observe("complete_task", &err)

	updated, err := s.mutate(ctx, "complete_task", taskID, func(ctx context.Context, tx repository.Tx, t *task.Task) error {
		if !t.IsSelectedProvider(callerID) {
			return NewForbidden("complete_task", "завершить задачу может только выбранный исполнитель")
		}
		if t.Status != task.StatusAssigned {
			return NewConflict("complete_task", "задача не в статусе assigned", ToDetail("status", t.Status))
		}

		provider, err := lockAccount(ctx, tx, callerID)
		if err != nil {
			return err
		}
		provider.CompletedTasks++
		if err := tx.SaveAccount(ctx, provider); err != nil {
			return err
		}

		completedAt := s.now()
		t.Status = task.StatusCompleted
		t.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Service: Задача завершена",
		zap.String("task_id", taskID.String()),
		zap.String("provider_id", callerID.String()))

	s.dispatch(ctx, notify.NewEvent(notify.KindTaskCompleted, updated.OwnerID, updated.UUID, map[string]any{
		"provider_id":  callerID.String(),
		"completed_at": updated.CompletedAt,
		"title":        updated.Title,
	}))
	return updated, nil
}

// RateProvider сохраняет оценку и пересчитывает репутацию исполнителя
// в одной атомарной единице
func (s *TaskService) RateProvider(ctx context.Context, taskID, callerID uuid.UUID, score int, review string) (_ *task.Task, err error) {
	defer s.observe("rate_provider", &err)

	if err := reputation.Validate(score); err != nil {
		return nil, NewValidationError("score", err.Error())
	}
	review = strings.TrimSpace(review)

	var provider *account.Account
	updated, err := s.mutate(ctx, "rate_provider", taskID, func(ctx context.Context, tx repository.Tx, t *task.Task) error {
		if !t.IsOwner(callerID) {
			return NewForbidden("rate_provider", "оценить исполнителя может только владелец задачи")
		}
		if t.Status != task.StatusCompleted {
			return NewConflict("rate_provider", "задача ещё не завершена", ToDetail("status", t.Status))
		}
		if t.Rating != nil {
			return NewConflict("rate_provider", "задача уже оценена")
		}

		acc, err := lockAccount(ctx, tx, *t.SelectedProviderID)
		if err != nil {
			return err
		}
		acc.AverageRating, acc.TotalRatings = reputation.Aggregate(acc.AverageRating, acc.TotalRatings, score)
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}

		t.Rating = &task.Rating{Score: score, Review: review, RatedAt: s.now()}
		provider = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Service: Исполнитель оценён",
		zap.String("task_id", taskID.String()),
		zap.String("provider_id", provider.ID.String()),
		zap.Int("score", score),
		zap.Float64("average_rating", provider.AverageRating),
		zap.Int("total_ratings", provider.TotalRatings))

	s.dispatch(ctx, notify.NewEvent(notify.KindRatingReceived, provider.ID, updated.UUID, map[string]any{
		"score":          score,
		"review":         review,
		"average_rating": provider.AverageRating,
		"total_ratings":  provider.TotalRatings,
		"title":          updated.Title,
	}))
	return updated, nil
}

func lockAccount(ctx context.Context, tx repository.Tx, id uuid.UUID) (*account.Account, error) {
	acc, err := tx.AccountForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("аккаунт", id.String())
		}
		return nil, err
	}
	return acc, nil
}

func ledgerError(action string, err error) error {
	switch {
	case errors.Is(err, task.ErrDuplicateBid),
		errors.Is(err, task.ErrBidTerminal),
		errors.Is(err, task.ErrBidSelected):
		return NewConflict(action, err.Error())
	case errors.Is(err, task.ErrInvalidCost):
		return NewValidationError("proposed_cost", err.Error())
	case errors.Is(err, task.ErrInvalidTime):
		return NewValidationError("proposed_time", err.Error())
	default:
		return err
	}
}
