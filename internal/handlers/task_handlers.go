package handlers

import (
	"net/http"
	"taskMarket/internal/handlers/dto"
	"taskMarket/internal/logger"
	"time"

	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Сервис нездоров", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", "task-market"),
		)
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", "task-market"),
		toPayload("time", time.Now().UTC()),
	)
}

func (s *TaskHandler) ListOpenTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	tasks, err := s.TaskService.ListOpenTasks(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "list_open_tasks")
		return
	}

	logger.Info("HTTP_OUT: Открытые задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK,
		toPayload("tasks", dto.FromTaskList(tasks)),
		toPayload("count", len(tasks)),
	)
}

func (s *TaskHandler) ListMyTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	tasks, err := s.TaskService.ListTasksForOwner(r.Context(), caller)
	if err != nil {
		handleServiceError(w, r, err, "list_owner_tasks")
		return
	}

	logger.Info("HTTP_OUT: Задачи владельца получены",
		zap.String("caller_id", caller.String()),
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK,
		toPayload("tasks", dto.FromTaskList(tasks)),
		toPayload("count", len(tasks)),
	)
}

func (s *TaskHandler) ListAssignedToMe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	tasks, err := s.TaskService.ListTasksForProvider(r.Context(), caller)
	if err != nil {
		handleServiceError(w, r, err, "list_provider_tasks")
		return
	}

	logger.Info("HTTP_OUT: Задачи исполнителя получены",
		zap.String("caller_id", caller.String()),
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK,
		toPayload("tasks", dto.FromTaskList(tasks)),
		toPayload("count", len(tasks)),
	)
}

func (s *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var request dto.CreateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	created, err := s.TaskService.CreateTask(r.Context(), caller, request.Draft())
	if err != nil {
		handleServiceError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("task", dto.FromTask(created)))
}

func (s *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	found, err := s.TaskService.GetTask(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_task")
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", found.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(found)))
}

func (s *TaskHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	taskID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var request dto.PlaceBidRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	bid, err := s.TaskService.PlaceBid(r.Context(), taskID, caller, request.ProposedCost, request.ProposedTime)
	if err != nil {
		handleServiceError(w, r, err, "place_bid")
		return
	}

	logger.Info("HTTP_OUT: Ставка размещена",
		zap.String("task_id", taskID.String()),
		zap.String("bid_id", bid.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("bid", dto.FromBid(*bid)))
}

func (s *TaskHandler) SelectBid(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	taskID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	bidID, ok := uuidParam(w, r, "bidId")
	if !ok {
		return
	}

	updated, err := s.TaskService.SelectBid(r.Context(), taskID, caller, bidID)
	if err != nil {
		handleServiceError(w, r, err, "select_bid")
		return
	}

	logger.Info("HTTP_OUT: Ставка выбрана",
		zap.String("task_id", taskID.String()),
		zap.String("bid_id", bidID.String()),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(updated)))
}

func (s *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	taskID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	updated, err := s.TaskService.CompleteTask(r.Context(), taskID, caller)
	if err != nil {
		handleServiceError(w, r, err, "complete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача завершена",
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(updated)))
}

func (s *TaskHandler) RateProvider(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	taskID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var request dto.RateProviderRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	updated, err := s.TaskService.RateProvider(r.Context(), taskID, caller, request.Score, request.Review)
	if err != nil {
		handleServiceError(w, r, err, "rate_provider")
		return
	}

	logger.Info("HTTP_OUT: Исполнитель оценён",
		zap.String("task_id", taskID.String()),
		zap.Int("score", request.Score),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(updated)))
}

func (s *TaskHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	acc, err := s.TaskService.GetAccount(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_account")
		return
	}

	logger.Info("HTTP_OUT: Профиль получен",
		zap.String("account_id", id.String()),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("account", dto.FromAccount(acc)))
}
