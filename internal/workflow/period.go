package workflow

import (
	"fmt"
	"time"

	"reinf/internal/apperr"
)

// Period identifies a declaration quarter
type Period struct {
	Year    int
	Quarter int
}

// Validate checks the quarter is 1..4 and the year is positive
func (p Period) Validate() error {
	if p.Year <= 0 {
		return fmt.Errorf("%w: year must be positive", apperr.ErrValidation)
	}
	if p.Quarter < 1 || p.Quarter > 4 {
		return fmt.Errorf("%w: quarter must be between 1 and 4", apperr.ErrValidation)
	}
	return nil
}

// Months returns the three calendar months covered by the quarter.
// The quarter must be valid.
func (p Period) Months() [3]time.Month {
	first := time.Month((p.Quarter-1)*3 + 1)
	return [3]time.Month{first, first + 1, first + 2}
}

// ResolvePeriod returns the company's effective reporting granularity:
// a non-empty override wins over the regime default.
func ResolvePeriod(regimeDefault, override string) string {
	if override != "" {
		return override
	}
	return regimeDefault
}

var monthLabels = [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

// MonthLabels returns the short pt-BR names of the quarter's months, in order
func (p Period) MonthLabels() [3]string {
	var out [3]string
	for i, m := range p.Months() {
		out[i] = monthLabels[m-1]
	}
	return out
}
