package database

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestGenerateMetadataID(t *testing.T) {
	first := time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "March-Week-0-ES", generateMetadataID(first, "ES"))

	third := time.Date(2024, time.March, 18, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "March-Week-2-NQ", generateMetadataID(third, "NQ"))

	// Same week generates the same id regardless of the day.
	a := generateMetadataID(time.Date(2024, time.July, 14, 1, 0, 0, 0, time.UTC), "ES")
	b := generateMetadataID(time.Date(2024, time.July, 20, 23, 0, 0, 0, time.UTC), "ES")
	assert.Equal(t, a, b)
}
