package account

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID             uuid.UUID `json:"id" db:"id" yaml:"id"`
	Role           Role      `json:"role" db:"role" yaml:"role"`
	Name           string    `json:"name" db:"name" yaml:"name"`
	Email          string    `json:"email" db:"email" yaml:"email"`
	AverageRating  float64   `json:"average_rating" db:"average_rating" yaml:"average_rating"`
	TotalRatings   int       `json:"total_ratings" db:"total_ratings" yaml:"total_ratings"`
	CompletedTasks int       `json:"completed_tasks" db:"completed_tasks" yaml:"completed_tasks"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

type Role string

const RoleUser Role = "user"
const RoleProvider Role = "provider"

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleProvider
}

func (a *Account) IsProvider() bool {
	return a.Role == RoleProvider
}

func (a *Account) IsUser() bool {
	return a.Role == RoleUser
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
