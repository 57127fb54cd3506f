// Package srs schedules flashcard reviews with the SM-2 algorithm.
package srs

import (
	"fmt"
	"math"
	"time"

	"studyrag/internal/domain"
)

// Review quality bounds. A quality of PassQuality or more counts as recalled.
const (
	MinQuality  = 0
	MaxQuality  = 5
	PassQuality = 3
)

const day = 24 * time.Hour

// Review applies one graded recall to state and returns the next state.
func Review(state domain.ReviewState, quality int, now time.Time) (domain.ReviewState, error) {
	if quality < MinQuality || quality > MaxQuality {
		return state, fmt.Errorf("%w: quality %d outside %d..%d", domain.ErrInvalidInput, quality, MinQuality, MaxQuality)
	}
	ef := state.EasinessFactor
	if ef == 0 {
		ef = domain.DefaultEasinessFactor
	}

	next := state
	if quality >= PassQuality {
		switch state.Repetitions {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(state.Interval) * ef))
		}
		next.Repetitions = state.Repetitions + 1
	} else {
		next.Repetitions = 0
		next.Interval = 1
	}

	q := float64(MaxQuality - quality)
	next.EasinessFactor = math.Max(domain.MinEasinessFactor, ef+(0.1-q*(0.08+q*0.02)))

	reviewed := now
	next.LastReviewed = &reviewed
	next.NextReview = now.Add(time.Duration(next.Interval) * day)
	return next, nil
}

// IsDue reports whether a card should be shown at now.
func IsDue(state domain.ReviewState, now time.Time) bool {
	return !state.NextReview.After(now)
}
