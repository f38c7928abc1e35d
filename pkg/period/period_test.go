package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromTime(t *testing.T) {
	assert.Equal(t, Key(202301), FromTime(time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Key(202312), FromTime(time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFromTimesFallback(t *testing.T) {
	created := time.Date(2023, time.March, 2, 0, 0, 0, 0, time.UTC)
	start := time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, Key(202302), FromTimes(start, created))
	assert.Equal(t, Key(202303), FromTimes(time.Time{}, created))
}

func TestOrdering(t *testing.T) {
	assert.True(t, Key(202212).Before(Key(202301)))
	assert.False(t, Key(202302).Before(Key(202302)))
	assert.Equal(t, "202301", Key(202301).String())
}
