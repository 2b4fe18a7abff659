package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financas/internal/core"
)

func date(y int, m time.Month, d int) core.Date { return core.NewDate(y, m, d) }

func TestNextDue(t *testing.T) {
	tests := []struct {
		name string
		day  int
		from core.Date
		want core.Date
	}{
		{"later this month", 10, date(2024, time.March, 5), date(2024, time.March, 10)},
		{"today counts", 10, date(2024, time.March, 10), date(2024, time.March, 10)},
		{"next month", 5, date(2024, time.March, 20), date(2024, time.April, 5)},
		{"year wrap", 5, date(2024, time.December, 20), date(2025, time.January, 5)},
		{"31 clamps to february leap day", 31, date(2024, time.February, 1), date(2024, time.February, 29)},
		{"30 clamps to february", 30, date(2023, time.February, 1), date(2023, time.February, 28)},
		{"31 in april is the 30th", 31, date(2024, time.April, 2), date(2024, time.April, 30)},
		{"31 in a long month", 31, date(2024, time.May, 2), date(2024, time.May, 31)},
		{"29 after clamp date passes", 29, date(2023, time.February, 28), date(2023, time.February, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDue(tt.day, tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestNextDue_InvalidDay(t *testing.T) {
	_, err := NextDue(0, date(2024, time.March, 1))
	assert.ErrorIs(t, err, core.ErrInvalidDay)
	_, err = NextDue(32, date(2024, time.March, 1))
	assert.ErrorIs(t, err, core.ErrInvalidDay)
}

func TestDueIn(t *testing.T) {
	got, err := DueIn(31, 2024, time.June)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-30", got.String())
}

func TestUpcoming(t *testing.T) {
	fixed := []core.FixedExpense{
		{Description: "Aluguel", DayOfMonth: 10},
		{Description: "Internet", DayOfMonth: 5},
		{Description: "Academia", DayOfMonth: 25},
		{Description: "Agua", DayOfMonth: 10},
	}

	got := Upcoming(fixed, date(2024, time.March, 4), 7)
	require.Len(t, got, 3)
	assert.Equal(t, "Internet", got[0].Expense.Description)
	assert.Equal(t, 1, got[0].DaysLeft)
	assert.Equal(t, "Agua", got[1].Expense.Description)
	assert.Equal(t, "Aluguel", got[2].Expense.Description)
	assert.Equal(t, 6, got[2].DaysLeft)

	assert.Empty(t, Upcoming(nil, date(2024, time.March, 4), 30))
}

func TestNextCycle(t *testing.T) {
	card := core.CreditCard{Name: "Nubank", ClosingDay: 3, DueDay: 10}
	cycle, err := NextCycle(card, date(2024, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, "2024-04-03", cycle.Closing.String())
	assert.Equal(t, "2024-04-10", cycle.Due.String())

	// Due day before closing day means the bill is paid the month after closing.
	card = core.CreditCard{Name: "Inter", ClosingDay: 28, DueDay: 5}
	cycle, err = NextCycle(card, date(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-28", cycle.Closing.String())
	assert.Equal(t, "2024-04-05", cycle.Due.String())

	assert.Len(t, Cycles([]core.CreditCard{card, {ClosingDay: 0, DueDay: 1}}, date(2024, time.March, 1)), 1)
}
