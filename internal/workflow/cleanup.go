package workflow

import (
	"fmt"
	"time"
)

// ConfirmationPhrase must be typed verbatim before a bulk cleanup runs.
const ConfirmationPhrase = "SUPPRIMER"

// CleanupPeriod is the minimum age of tickets removed by a bulk cleanup.
type CleanupPeriod string

const (
	CleanupOneYear    CleanupPeriod = "1y"
	CleanupTwoYears   CleanupPeriod = "2y"
	CleanupThreeYears CleanupPeriod = "3y"
	CleanupFiveYears  CleanupPeriod = "5y"
)

var cleanupYears = map[CleanupPeriod]int{
	CleanupOneYear:    1,
	CleanupTwoYears:   2,
	CleanupThreeYears: 3,
	CleanupFiveYears:  5,
}

// CleanupPeriods lists the accepted periods in ascending order.
var CleanupPeriods = []CleanupPeriod{CleanupOneYear, CleanupTwoYears, CleanupThreeYears, CleanupFiveYears}

// ParseCleanupPeriod validates a raw period string.
func ParseCleanupPeriod(raw string) (CleanupPeriod, error) {
	p := CleanupPeriod(raw)
	if _, ok := cleanupYears[p]; !ok {
		return "", newError(KindInvalidCleanup, "période inconnue: %q", raw)
	}
	return p, nil
}

// Years returns the number of years covered by p.
func (p CleanupPeriod) Years() int { return cleanupYears[p] }

// Cutoff returns the creation date before which tickets are removed.
func (p CleanupPeriod) Cutoff(now time.Time) time.Time {
	return now.AddDate(-p.Years(), 0, 0)
}

// Confirmed reports whether input is exactly the confirmation phrase.
func Confirmed(input string) bool {
	return input == ConfirmationPhrase
}

// CheckCleanup validates a cleanup request.
func CheckCleanup(rawPeriod, confirmation string) (CleanupPeriod, error) {
	p, err := ParseCleanupPeriod(rawPeriod)
	if err != nil {
		return "", err
	}
	if !Confirmed(confirmation) {
		return "", newError(KindInvalidCleanup, "saisissez %s pour confirmer la suppression", ConfirmationPhrase)
	}
	return p, nil
}

// CleanupMessage is the confirmation shown once n tickets were removed.
func CleanupMessage(n int64) string {
	if n == 1 {
		return "1 bon a été supprimé."
	}
	return fmt.Sprintf("%d bons ont été supprimés.", n)
}
