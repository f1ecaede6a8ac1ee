package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddDaysAcrossBoundaries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from DayKey
		n    int
		want string
	}{
		{Date(2025, time.April, 1), 7, "2025-04-08"},
		{Date(2025, time.April, 28), 5, "2025-05-03"},
		{Date(2024, time.February, 27), 2, "2024-02-29"},
		{Date(2025, time.December, 30), 3, "2026-01-02"},
		{Date(2025, time.March, 30), 1, "2025-03-31"}, // DST change in Europe
		{Date(2025, time.March, 1), -1, "2025-02-28"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.from.AddDays(tt.n).String())
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()
	a := Date(2025, time.April, 1)
	b := Date(2025, time.April, 22)
	require.True(t, a.Before(b))
	require.True(t, b.After(a))
	require.Equal(t, 0, a.Compare(a))
	require.True(t, Date(2024, time.December, 31).Before(Date(2025, time.January, 1)))
}

func TestDayKeyJSON(t *testing.T) {
	t.Parallel()
	type payload struct {
		Day  DayKey         `json:"day"`
		Dots map[DayKey]int `json:"dots"`
	}
	in := payload{Day: Date(2025, time.April, 6), Dots: map[DayKey]int{Date(2025, time.April, 7): 2}}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"day":"2025-04-06","dots":{"2025-04-07":2}}`, string(b))

	var out payload
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, in, out)

	require.Error(t, json.Unmarshal([]byte(`{"day":"2025-04-31"}`), &out))
}

func TestDateNormalizesComponents(t *testing.T) {
	t.Parallel()
	require.Equal(t, "2025-05-01", Date(2025, time.April, 31).String())
	require.True(t, DayKey{}.IsZero())
	require.False(t, Date(2025, time.January, 1).IsZero())
}
