package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reinf/internal/apperr"
)

func TestResolvePeriod(t *testing.T) {
	assert.Equal(t, "mensal", ResolvePeriod("trimestral", "mensal"))
	assert.Equal(t, "trimestral", ResolvePeriod("trimestral", ""))
	assert.Equal(t, "mensal", ResolvePeriod("mensal", ""))
	assert.Equal(t, "trimestral", ResolvePeriod("mensal", "trimestral"))
}

func TestPeriod_Validate(t *testing.T) {
	tests := []struct {
		name    string
		period  Period
		wantErr bool
	}{
		{"q1", Period{Year: 2024, Quarter: 1}, false},
		{"q4", Period{Year: 2024, Quarter: 4}, false},
		{"quarter zero", Period{Year: 2024, Quarter: 0}, true},
		{"quarter five", Period{Year: 2024, Quarter: 5}, true},
		{"no year", Period{Quarter: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.period.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperr.ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPeriod_Months(t *testing.T) {
	assert.Equal(t, [3]time.Month{time.January, time.February, time.March}, Period{Year: 2024, Quarter: 1}.Months())
	assert.Equal(t, [3]time.Month{time.October, time.November, time.December}, Period{Year: 2024, Quarter: 4}.Months())
}

func TestPeriod_MonthLabels(t *testing.T) {
	assert.Equal(t, [3]string{"Jan", "Fev", "Mar"}, Period{Year: 2024, Quarter: 1}.MonthLabels())
	assert.Equal(t, [3]string{"Jul", "Ago", "Set"}, Period{Year: 2024, Quarter: 3}.MonthLabels())
}
