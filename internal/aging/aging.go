// Package aging classifies outstanding payments by how long they are overdue.
package aging

import (
	"time"

	"github.com/sppg-platform/budget-engine/pkg/enums"
)

const day = 24 * time.Hour

// Bucket boundaries, in whole days overdue. Up to CurrentMaxDays is still CURRENT.
const (
	CurrentMaxDays = 30
	Days60MaxDays  = 60
	Days90MaxDays  = 90
)

// DaysOverdue returns the whole days elapsed since dueDate, or 0 when not yet due.
func DaysOverdue(dueDate, now time.Time) int {
	elapsed := now.Sub(dueDate)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / day)
}

// Bucket maps days overdue onto an aging bucket.
func Bucket(daysOverdue int) enums.AgingBucket {
	switch {
	case daysOverdue <= CurrentMaxDays:
		return enums.AgingBucketCurrent
	case daysOverdue <= Days60MaxDays:
		return enums.AgingBucketDays31To60
	case daysOverdue <= Days90MaxDays:
		return enums.AgingBucketDays61To90
	default:
		return enums.AgingBucketOver90
	}
}

// Classify returns both the days overdue and the bucket for a due date.
func Classify(dueDate, now time.Time) (int, enums.AgingBucket) {
	days := DaysOverdue(dueDate, now)
	return days, Bucket(days)
}
