package approvals

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/pkg/db/models"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
)

// sortedByMin returns a copy of levels ordered by their lower bound.
func sortedByMin(levels []models.ApprovalLevel) []models.ApprovalLevel {
	out := make([]models.ApprovalLevel, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinAmount.LessThan(out[j].MinAmount)
	})
	return out
}

func covers(level models.ApprovalLevel, amount decimal.Decimal) bool {
	if amount.LessThan(level.MinAmount) {
		return false
	}
	return !level.MaxAmount.Valid || amount.LessThan(level.MaxAmount.Decimal)
}

// Resolve returns the level whose [min, max) range contains amount.
func Resolve(amount decimal.Decimal, levels []models.ApprovalLevel) (*models.ApprovalLevel, error) {
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	for _, level := range sortedByMin(levels) {
		if covers(level, amount) {
			match := level
			return &match, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNoMatchingLevel, "no approval level covers amount").
		WithDetails(map[string]any{"amount": amount.StringFixed(2), "levels": len(levels)})
}

// EscalationDeadline is the instant after which an item pending since startedAt
// at level is overdue.
func EscalationDeadline(level models.ApprovalLevel, startedAt time.Time) time.Time {
	return startedAt.AddDate(0, 0, level.EscalationDays)
}

// NextLevel returns the lowest configured level above current.
func NextLevel(levels []models.ApprovalLevel, current int) (*models.ApprovalLevel, bool) {
	var next *models.ApprovalLevel
	for i := range levels {
		if levels[i].Level <= current {
			continue
		}
		if next == nil || levels[i].Level < next.Level {
			candidate := levels[i]
			next = &candidate
		}
	}
	return next, next != nil
}

// LevelByNumber finds the configured level with the given number.
func LevelByNumber(levels []models.ApprovalLevel, number int) (*models.ApprovalLevel, bool) {
	for i := range levels {
		if levels[i].Level == number {
			match := levels[i]
			return &match, true
		}
	}
	return nil, false
}

// ValidateLevels checks that levels form a contiguous cover of [0, +inf):
// the lowest starts at zero, each range ends where the next starts, only the
// last is unbounded and level numbers rise with the amounts.
func ValidateLevels(levels []models.ApprovalLevel) error {
	if len(levels) == 0 {
		return validationErr("at least one approval level is required")
	}

	seen := make(map[int]struct{}, len(levels))
	for _, level := range levels {
		if level.Level <= 0 {
			return validationErr(fmt.Sprintf("level number %d must be positive", level.Level))
		}
		if _, dup := seen[level.Level]; dup {
			return validationErr(fmt.Sprintf("level %d configured twice", level.Level))
		}
		seen[level.Level] = struct{}{}
		if !level.RequiredRole.IsValid() {
			return validationErr(fmt.Sprintf("level %d has invalid role %q", level.Level, level.RequiredRole))
		}
		if level.EscalationDays <= 0 {
			return validationErr(fmt.Sprintf("level %d escalation days must be positive", level.Level))
		}
		if level.MinAmount.IsNegative() {
			return validationErr(fmt.Sprintf("level %d minimum must not be negative", level.Level))
		}
		if level.MaxAmount.Valid && !level.MaxAmount.Decimal.GreaterThan(level.MinAmount) {
			return validationErr(fmt.Sprintf("level %d maximum must exceed its minimum", level.Level))
		}
	}

	ordered := sortedByMin(levels)
	if !ordered[0].MinAmount.IsZero() {
		return validationErr("lowest approval level must start at zero")
	}
	for i := 0; i < len(ordered)-1; i++ {
		current, next := ordered[i], ordered[i+1]
		if !current.MaxAmount.Valid {
			return validationErr(fmt.Sprintf("only the highest level may be unbounded, level %d is not highest", current.Level))
		}
		if !current.MaxAmount.Decimal.Equal(next.MinAmount) {
			return validationErr(fmt.Sprintf("gap or overlap between level %d and level %d", current.Level, next.Level))
		}
		if next.Level <= current.Level {
			return validationErr(fmt.Sprintf("level %d covers larger amounts than level %d", current.Level, next.Level))
		}
	}
	if ordered[len(ordered)-1].MaxAmount.Valid {
		return validationErr("highest approval level must be unbounded")
	}
	return nil
}

func validationErr(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}
