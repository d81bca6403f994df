// Package recurrence expands recurring parent tasks into bounded
// sequences of concrete instances. All functions are pure; callers
// persist the results.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
)

var (
	ErrNotRecurring = errors.New("task has no recurrence rule")
	ErrUnknownRule  = errors.New("unknown recurrence rule")
)

const dateLayout = "2006-01-02"

// CapFor returns the policy ceiling on generated instances per rule,
// roughly a one-year horizon.
func CapFor(rule models.Recurrence) int {
	switch rule {
	case models.RecurrenceDaily:
		return 30
	case models.RecurrenceWeekly:
		return 52
	case models.RecurrenceMonthly:
		return 12
	default:
		return 0
	}
}

// DueForStep computes the due date exactly step rule-steps after the
// series anchor. Monthly steps are always measured from the anchor so a
// month-end clamp never propagates: a Jan 31 anchor yields Feb 29 at
// step 1 and Mar 31 at step 2, not Mar 29.
func DueForStep(anchor time.Time, rule models.Recurrence, step int) (time.Time, error) {
	switch rule {
	case models.RecurrenceDaily:
		return anchor.AddDate(0, 0, step), nil
	case models.RecurrenceWeekly:
		return anchor.AddDate(0, 0, 7*step), nil
	case models.RecurrenceMonthly:
		return addCalendarMonths(anchor, step), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRule, rule)
	}
}

// addCalendarMonths clamps to the end of the target month when the
// anchor day does not exist there. AddDate alone would normalize
// Jan 31 + 1 month to Mar 2/3.
func addCalendarMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, date.Location())
	lastOfTarget := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastOfTarget {
		d = lastOfTarget
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, date.Location())
}

// Expand generates instances for a recurring parent: instance i due
// exactly i+1 rule steps after the parent's due date, capped at
// maxInstances (bounded above by the rule's policy cap) and truncated
// at now + 1 year. The horizon is evaluated per call, not fixed at
// parent creation.
//
// Instances inherit every reminder/list/priority field verbatim; only
// the id, due date, and recurrence shape differ.
func Expand(parent models.Task, maxInstances int, now time.Time) ([]models.Task, error) {
	if parent.Recurrence == models.RecurrenceNone {
		return nil, ErrNotRecurring
	}
	if err := parent.ValidateRecurrence(); err != nil {
		return nil, err
	}

	cap := CapFor(parent.Recurrence)
	if cap == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, parent.Recurrence)
	}
	if maxInstances <= 0 || maxInstances > cap {
		maxInstances = cap
	}

	anchor, err := time.Parse(dateLayout, parent.DueDate)
	if err != nil {
		return nil, fmt.Errorf("parse parent due date %q: %w", parent.DueDate, err)
	}
	horizon := now.AddDate(1, 0, 0)

	instances := make([]models.Task, 0, maxInstances)
	for i := 1; i <= maxInstances; i++ {
		due, err := DueForStep(anchor, parent.Recurrence, i)
		if err != nil {
			return nil, err
		}
		if due.After(horizon) {
			break
		}
		instances = append(instances, Instantiate(parent, due))
	}
	return instances, nil
}

// Instantiate derives a single non-recurring instance of parent due on
// the given date.
func Instantiate(parent models.Task, due time.Time) models.Task {
	inst := parent
	inst.ID = uuid.Must(uuid.NewV4())
	inst.DueDate = due.Format(dateLayout)
	inst.Recurrence = models.RecurrenceNone
	parentID := parent.ID
	inst.RecurrenceID = &parentID
	inst.IsRecurringParent = false
	inst.Completed = false
	inst.CreatedAt = time.Time{}
	inst.UpdatedAt = time.Time{}
	return inst
}

// NextAfter computes the due date of the single next instance after
// the given task was completed: the first anchor-relative step strictly
// beyond the completed due date. anchorDate is the series parent's due
// date; measuring from it rather than from the completed instance keeps
// month-end series on the anchor day (Jan 31, Feb 29, Mar 31) instead
// of drifting after a clamped month.
func NextAfter(completed models.Task, anchorDate string, rule models.Recurrence) (time.Time, error) {
	if rule == models.RecurrenceNone {
		return time.Time{}, ErrNotRecurring
	}
	due, err := time.Parse(dateLayout, completed.DueDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse due date %q: %w", completed.DueDate, err)
	}
	anchor, err := time.Parse(dateLayout, anchorDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse anchor date %q: %w", anchorDate, err)
	}

	if rule != models.RecurrenceMonthly {
		return DueForStep(due, rule, 1)
	}

	ay, am, _ := anchor.Date()
	dy, dm, _ := due.Date()
	elapsed := (dy-ay)*12 + int(dm-am)
	if elapsed < 0 {
		elapsed = 0
	}
	return DueForStep(anchor, rule, elapsed+1)
}
