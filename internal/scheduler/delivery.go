package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/notify"
	"task-reminder/backend/internal/worker"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// DeliveryHandlers turns queued fan-out jobs into actual deliveries.
type DeliveryHandlers struct {
	db     *gorm.DB
	pusher notify.Pusher
	mailer notify.Mailer
}

func NewDeliveryHandlers(db *gorm.DB, pusher notify.Pusher, mailer notify.Mailer) *DeliveryHandlers {
	return &DeliveryHandlers{db: db, pusher: pusher, mailer: mailer}
}

// Register wires the handlers into the worker.
func (h *DeliveryHandlers) Register(w *worker.Worker) {
	w.RegisterHandler(worker.JobTypePushDelivery, h.HandlePush)
	w.RegisterHandler(worker.JobTypeEmailDelivery, h.HandleEmail)
}

// HandlePush delivers one push payload to one endpoint. A gone
// endpoint is deregistered and the job succeeds; transient failures
// propagate so the worker retries.
func (h *DeliveryHandlers) HandlePush(ctx context.Context, job *worker.Job) error {
	task, err := h.loadTask(ctx, job.Payload["task_id"])
	if err != nil {
		return err
	}
	if task.Completed {
		// Completed between scan and delivery: drop silently.
		return nil
	}

	subID, err := uuid.FromString(job.Payload["subscription_id"])
	if err != nil {
		return fmt.Errorf("bad subscription id %q: %w", job.Payload["subscription_id"], err)
	}
	var sub models.PushSubscription
	if err := h.db.WithContext(ctx).Where("id = ?", subID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // already deregistered
		}
		return err
	}

	if err := h.pusher.Push(ctx, sub, notify.RenderPush(*task)); err != nil {
		if errors.Is(err, notify.ErrEndpointGone) {
			log.Printf("delivery: endpoint %s gone, deregistering", sub.ID)
			if derr := h.db.WithContext(ctx).Delete(&sub).Error; derr != nil {
				log.Printf("delivery: deregister endpoint %s: %v", sub.ID, derr)
			}
			return nil
		}
		return err
	}
	return nil
}

// HandleEmail sends one reminder email.
func (h *DeliveryHandlers) HandleEmail(ctx context.Context, job *worker.Job) error {
	task, err := h.loadTask(ctx, job.Payload["task_id"])
	if err != nil {
		return err
	}
	if task.Completed {
		return nil
	}

	subject, body := notify.RenderEmail(*task)
	return h.mailer.Send(ctx, job.Payload["to"], subject, body)
}

func (h *DeliveryHandlers) loadTask(ctx context.Context, rawID string) (*models.Task, error) {
	id, err := uuid.FromString(rawID)
	if err != nil {
		return nil, fmt.Errorf("bad task id %q: %w", rawID, err)
	}
	var task models.Task
	if err := h.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}
