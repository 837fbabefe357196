package task

import (
	"time"

	"github.com/google/uuid"
)

type TaskOption func(*Task)

func WithID(id uuid.UUID) TaskOption {
	if id == uuid.Nil {
		return nil
	}
	return func(task *Task) {
		task.UUID = id
	}
}

func WithImage(ref string) TaskOption {
	if ref == "" {
		return nil
	}
	return func(task *Task) {
		task.ImageRef = ref
	}
}

func WithCreatedAt(createdAt time.Time) TaskOption {
	if createdAt.IsZero() {
		return nil
	}
	return func(task *Task) {
		task.CreatedAt = createdAt
	}
}
