package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	a := Record{ID: "1", Price: 300000, Bedrooms: 3, Bathrooms: 2, SizeSqft: 1800}
	b := Record{ID: "2", Price: 350000, Bedrooms: 3, Bathrooms: 1, SizeSqft: 1500}

	c := Compare(a, b)
	assert.Equal(t, 50000.0, c.PriceDifference)
	assert.Equal(t, 0, c.BedroomsDifference)
	assert.Equal(t, -1, c.BathroomDifference)
	assert.Equal(t, -300, c.SizeDifference)
	assert.Equal(t, ComparisonNotes{
		LargerProperty: "1",
		MoreExpensive:  "2",
		MoreBedrooms:   Equal,
		MoreBathrooms:  "1",
	}, c.Notes)
}
