// Package notify defines the delivery collaborators the reminder
// scheduler fans out to, and renders their payloads. Transports are
// external; this package owns the logical contract only.
package notify

import (
	"context"
	"errors"
	"fmt"

	"task-reminder/backend/internal/models"
)

// ErrEndpointGone signals the delivery target is permanently invalid.
// The caller deregisters the endpoint; transient failures must not be
// wrapped in this.
var ErrEndpointGone = errors.New("delivery endpoint gone")

// PushPayload is the logical push contract, transport-agnostic.
type PushPayload struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Icon      string            `json:"icon"`
	Sound     string            `json:"sound"`
	Vibration []int             `json:"vibration"`
	Data      map[string]string `json:"data"`
	Actions   []string          `json:"actions"`
}

// Pusher delivers a payload to one registered endpoint.
type Pusher interface {
	Push(ctx context.Context, sub models.PushSubscription, payload PushPayload) error
}

// Mailer sends a rendered reminder message to an address.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RenderPush builds the push payload for a due-reminder.
func RenderPush(task models.Task) PushPayload {
	return PushPayload{
		Title:     "Task Reminder",
		Body:      fmt.Sprintf("%s is due at %s", task.Title, task.DueTime),
		Icon:      "icon-192.png",
		Sound:     "default",
		Vibration: []int{200, 100, 200},
		Data: map[string]string{
			"taskId":   task.ID.String(),
			"dueDate":  task.DueDate,
			"dueTime":  task.DueTime,
			"priority": string(task.Priority),
		},
		Actions: []string{"view", "complete", "snooze"},
	}
}

// RenderEmail builds the subject and body for an email reminder.
func RenderEmail(task models.Task) (subject, body string) {
	subject = fmt.Sprintf("Reminder: %s", task.Title)
	body = fmt.Sprintf("Your task %q is due on %s at %s.", task.Title, task.DueDate, task.DueTime)
	if task.Description != "" {
		body += "\n\n" + task.Description
	}
	return subject, body
}
