// Package reputation пересчитывает средний рейтинг исполнителя по одной новой оценке.
package reputation

import (
	"errors"
	"math"
)

const MinScore = 1
const MaxScore = 5

var ErrScoreOutOfRange = errors.New("оценка должна быть от 1 до 5")

func Validate(score int) error {
	if score < MinScore || score > MaxScore {
		return ErrScoreOutOfRange
	}
	return nil
}

// Aggregate возвращает новое среднее и количество оценок.
// Среднее округляется до одного знака после запятой.
func Aggregate(currentAvg float64, currentCount int, newScore int) (float64, int) {
	if currentCount < 0 {
		currentCount = 0
	}
	newCount := currentCount + 1
	newAvg := (currentAvg*float64(currentCount) + float64(newScore)) / float64(newCount)
	return Round1(newAvg), newCount
}

// Round1 округляет до десятых, половина уходит от нуля
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
