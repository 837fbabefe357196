package handlers

import (
	"context"
	"taskMarket/internal/models/account"
	"taskMarket/internal/models/task"
	"time"

	"github.com/google/uuid"
)

type TaskService interface {
	HealthCheck(ctx context.Context) error
	CreateTask(ctx context.Context, ownerID uuid.UUID, draft task.Draft) (*task.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error)
	ListOpenTasks(ctx context.Context) ([]*task.Task, error)
	ListTasksForOwner(ctx context.Context, ownerID uuid.UUID) ([]*task.Task, error)
	ListTasksForProvider(ctx context.Context, providerID uuid.UUID) ([]*task.Task, error)
	PlaceBid(ctx context.Context, taskID, providerID uuid.UUID, cost float64, proposedTime time.Time) (*task.Bid, error)
	SelectBid(ctx context.Context, taskID, callerID, bidID uuid.UUID) (*task.Task, error)
	CompleteTask(ctx context.Context, taskID, callerID uuid.UUID) (*task.Task, error)
	RateProvider(ctx context.Context, taskID, callerID uuid.UUID, score int, review string) (*task.Task, error)
}
