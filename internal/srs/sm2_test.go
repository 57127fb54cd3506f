package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestReview_Sequence(t *testing.T) {
	s := domain.NewReviewState(now)

	s, err := Review(s, 5, now)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Interval)
	assert.Equal(t, 1, s.Repetitions)
	assert.InDelta(t, 2.6, s.EasinessFactor, 1e-9)

	s, err = Review(s, 5, now)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Interval)
	assert.Equal(t, 2, s.Repetitions)
	assert.InDelta(t, 2.7, s.EasinessFactor, 1e-9)

	// round(6 * 2.7) uses the factor from before this review.
	s, err = Review(s, 5, now)
	require.NoError(t, err)
	assert.Equal(t, 16, s.Interval)
	assert.Equal(t, 3, s.Repetitions)
	assert.InDelta(t, 2.8, s.EasinessFactor, 1e-9)
	assert.Equal(t, now.AddDate(0, 0, 16), s.NextReview)
	require.NotNil(t, s.LastReviewed)
	assert.Equal(t, now, *s.LastReviewed)
}

func TestReview_Failure(t *testing.T) {
	s := domain.ReviewState{EasinessFactor: 2.5, Interval: 15, Repetitions: 4}
	s, err := Review(s, 1, now)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Repetitions)
	assert.Equal(t, 1, s.Interval)
	assert.InDelta(t, 1.96, s.EasinessFactor, 1e-9)
	assert.Equal(t, now.Add(24*time.Hour), s.NextReview)
}

func TestReview_EasinessFloor(t *testing.T) {
	s := domain.ReviewState{EasinessFactor: 1.35}
	s, err := Review(s, 0, now)
	require.NoError(t, err)
	assert.Equal(t, domain.MinEasinessFactor, s.EasinessFactor)
}

func TestReview_QualityThree(t *testing.T) {
	s, err := Review(domain.NewReviewState(now), 3, now)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Repetitions)
	assert.InDelta(t, 2.36, s.EasinessFactor, 1e-9)
}

func TestReview_InvalidQuality(t *testing.T) {
	in := domain.NewReviewState(now)
	for _, q := range []int{-1, 6} {
		out, err := Review(in, q, now)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, in, out)
	}
}

func TestIsDue(t *testing.T) {
	s := domain.ReviewState{NextReview: now}
	assert.True(t, IsDue(s, now))
	assert.True(t, IsDue(s, now.Add(time.Minute)))
	assert.False(t, IsDue(s, now.Add(-time.Minute)))
}
