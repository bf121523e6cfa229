package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartCombinesDateAndClock(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	date, startAt, err := ParseStart("2099-06-10", "09:30", paris)
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Date(2099, time.June, 10, 0, 0, 0, 0, paris)))
	assert.True(t, startAt.Equal(time.Date(2099, time.June, 10, 9, 30, 0, 0, paris)))
}

func TestParseStartRejectsMalformedInput(t *testing.T) {
	_, _, err := ParseStart("10/06/2099", "09:30", time.UTC)
	require.Error(t, err)
	_, _, err = ParseStart("2099-06-10", "9h30", time.UTC)
	require.Error(t, err)
}

func TestSameDate(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	utcMidnight := time.Date(2099, time.June, 10, 0, 0, 0, 0, time.UTC)
	parisMidnight := time.Date(2099, time.June, 10, 0, 0, 0, 0, paris)

	// Different instants, same calendar date.
	require.False(t, utcMidnight.Equal(parisMidnight))
	assert.True(t, SameDate(utcMidnight, parisMidnight))
	assert.True(t, SameDate(parisMidnight, utcMidnight))

	assert.False(t, SameDate(utcMidnight, utcMidnight.AddDate(0, 0, 1)))
	assert.False(t, SameDate(utcMidnight, utcMidnight.AddDate(0, -1, 0)))
}
