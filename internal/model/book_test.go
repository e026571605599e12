package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookAverageRating(t *testing.T) {
	assert.Zero(t, Book{}.AverageRating())

	b := Book{Ratings: []Rating{{Value: 5}, {Value: 4}, {Value: 2}}}
	assert.InDelta(t, 3.6667, b.AverageRating(), 0.001)
}
