package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"task-reminder/backend/internal/cache"
	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/worker"

	"github.com/gofrs/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DeliveryQueue is the producer side of the fan-out worker.
type DeliveryQueue interface {
	Enqueue(queue string, jobType worker.JobType, payload map[string]string) error
}

// DueScanner is the server half: a periodic scan over all users' tasks
// that fans out push and email deliveries whose fire time falls inside
// the tolerance window around now. Scans may overlap themselves; the
// window-bucketed delivery tag keeps a double match from delivering
// twice.
type DueScanner struct {
	db             *gorm.DB
	dedup          *cache.DedupStore
	queue          DeliveryQueue
	loc            *time.Location
	pushTolerance  time.Duration
	emailTolerance time.Duration
	cron           *cron.Cron
	now            func() time.Time
}

type ScannerConfig struct {
	DB             *gorm.DB
	Dedup          *cache.DedupStore
	Queue          DeliveryQueue
	Location       *time.Location
	PushTolerance  time.Duration
	EmailTolerance time.Duration
}

func NewDueScanner(cfg ScannerConfig) *DueScanner {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	pushTol := cfg.PushTolerance
	if pushTol <= 0 {
		pushTol = time.Minute
	}
	emailTol := cfg.EmailTolerance
	if emailTol <= 0 {
		emailTol = 5 * time.Minute
	}
	return &DueScanner{
		db:             cfg.DB,
		dedup:          cfg.Dedup,
		queue:          cfg.Queue,
		loc:            loc,
		pushTolerance:  pushTol,
		emailTolerance: emailTol,
		cron:           cron.New(cron.WithLocation(loc)),
		now:            time.Now,
	}
}

// Start registers the periodic scan and starts the cron runner.
func (s *DueScanner) Start(interval time.Duration) error {
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		s.Scan(ctx)
	}); err != nil {
		return fmt.Errorf("register reminder scan: %w", err)
	}
	s.cron.Start()
	return nil
}

func (s *DueScanner) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Scan runs one pass over both channels. Per-task failures are logged
// and do not abort the pass.
func (s *DueScanner) Scan(ctx context.Context) {
	now := s.now()
	if n, err := s.ScanPush(ctx, now); err != nil {
		log.Printf("scanner: push scan failed: %v", err)
	} else if n > 0 {
		log.Printf("scanner: enqueued %d push deliveries", n)
	}
	if n, err := s.ScanEmail(ctx, now); err != nil {
		log.Printf("scanner: email scan failed: %v", err)
	} else if n > 0 {
		log.Printf("scanner: enqueued %d email deliveries", n)
	}
}

// ScanPush matches uncompleted push-enabled tasks whose fire time is
// within the push tolerance of now, and enqueues one delivery job per
// registered endpoint of the owner.
func (s *DueScanner) ScanPush(ctx context.Context, now time.Time) (int, error) {
	tasks, err := s.dueTasks(ctx, "push_notification", now, s.pushTolerance)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, task := range tasks {
		fireAt, _ := task.ReminderFireAt(s.loc)
		claimed, err := s.claimDelivery(ctx, task, models.ChannelPush, fireAt)
		if err != nil {
			log.Printf("scanner: claim push delivery for task %s: %v", task.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		var subs []models.PushSubscription
		if err := s.db.WithContext(ctx).Where("user_id = ?", task.UserID).Find(&subs).Error; err != nil {
			log.Printf("scanner: load subscriptions for user %s: %v", task.UserID, err)
			s.releaseClaim(ctx, task, models.ChannelPush, fireAt)
			continue
		}
		sent := 0
		for _, sub := range subs {
			err := s.queue.Enqueue(worker.QueueReminders, worker.JobTypePushDelivery, map[string]string{
				"task_id":         task.ID.String(),
				"subscription_id": sub.ID.String(),
			})
			if err != nil {
				log.Printf("scanner: enqueue push for task %s endpoint %s: %v", task.ID, sub.ID, err)
				continue
			}
			sent++
		}
		// No job made it onto the queue: give the window back so a
		// later pass retries. A partial fan-out keeps the claim; the
		// delivered endpoints must not double-fire.
		if len(subs) > 0 && sent == 0 {
			s.releaseClaim(ctx, task, models.ChannelPush, fireAt)
			continue
		}
		enqueued += sent
	}
	return enqueued, nil
}

// ScanEmail is the email counterpart; its window is wider to absorb
// client sync latency.
func (s *DueScanner) ScanEmail(ctx context.Context, now time.Time) (int, error) {
	tasks, err := s.dueTasks(ctx, "email_reminder", now, s.emailTolerance)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, task := range tasks {
		fireAt, _ := task.ReminderFireAt(s.loc)
		claimed, err := s.claimDelivery(ctx, task, models.ChannelEmail, fireAt)
		if err != nil {
			log.Printf("scanner: claim email delivery for task %s: %v", task.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		var user models.User
		if err := s.db.WithContext(ctx).Where("id = ?", task.UserID).First(&user).Error; err != nil {
			log.Printf("scanner: load owner %s for task %s: %v", task.UserID, task.ID, err)
			s.releaseClaim(ctx, task, models.ChannelEmail, fireAt)
			continue
		}
		err = s.queue.Enqueue(worker.QueueReminders, worker.JobTypeEmailDelivery, map[string]string{
			"task_id": task.ID.String(),
			"to":      user.Email,
		})
		if err != nil {
			log.Printf("scanner: enqueue email for task %s: %v", task.ID, err)
			s.releaseClaim(ctx, task, models.ChannelEmail, fireAt)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// dueTasks loads candidates by flag and filters on the computed fire
// window in Go; due date and time live as strings, so the window test
// is not expressible in portable SQL.
func (s *DueScanner) dueTasks(ctx context.Context, flagColumn string, now time.Time, tolerance time.Duration) ([]models.Task, error) {
	var candidates []models.Task
	err := s.db.WithContext(ctx).
		Where(flagColumn+" = ? AND completed = ?", true, false).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("load reminder candidates: %w", err)
	}

	var due []models.Task
	for _, task := range candidates {
		fireAt, err := task.ReminderFireAt(s.loc)
		if err != nil {
			log.Printf("scanner: %v", err)
			continue
		}
		diff := fireAt.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			due = append(due, task)
		}
	}
	return due, nil
}

// claimDelivery wins at most once per task/channel/window: first the
// redis fast path, then the unique delivery row. Either layer alone
// stops a duplicate; redis going down degrades to the row check.
func (s *DueScanner) claimDelivery(ctx context.Context, task models.Task, channel models.DeliveryChannel, fireAt time.Time) (bool, error) {
	tag := models.DeliveryTag(task.ID, channel, fireAt)

	claimedFast := false
	if s.dedup != nil {
		won, err := s.dedup.Claim(ctx, tag)
		if err != nil {
			log.Printf("scanner: dedup claim degraded to database: %v", err)
		} else if !won {
			return false, nil
		} else {
			claimedFast = true
		}
	}

	delivery := models.ReminderDelivery{
		ID:          uuid.Must(uuid.NewV4()),
		TaskID:      task.ID,
		Channel:     channel,
		WindowTag:   tag,
		DeliveredAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&delivery).Error; err != nil {
		if isUniqueViolation(err) {
			// Another pass already owns this window.
			return false, nil
		}
		if claimedFast {
			if rerr := s.dedup.Release(ctx, tag); rerr != nil {
				log.Printf("scanner: release claim %s: %v", tag, rerr)
			}
		}
		return false, fmt.Errorf("record delivery claim: %w", err)
	}
	return true, nil
}

// releaseClaim undoes both layers of a won claim after the fan-out
// failed, so a later scan pass can deliver this window.
func (s *DueScanner) releaseClaim(ctx context.Context, task models.Task, channel models.DeliveryChannel, fireAt time.Time) {
	tag := models.DeliveryTag(task.ID, channel, fireAt)
	if s.dedup != nil {
		if err := s.dedup.Release(ctx, tag); err != nil {
			log.Printf("scanner: release claim %s: %v", tag, err)
		}
	}
	if err := s.db.WithContext(ctx).Where("window_tag = ?", tag).Delete(&models.ReminderDelivery{}).Error; err != nil {
		log.Printf("scanner: remove delivery record %s: %v", tag, err)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "duplicate key")
}
