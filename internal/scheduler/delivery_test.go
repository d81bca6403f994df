package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/notify"
	"task-reminder/backend/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	err    error
	pushed []models.PushSubscription
}

func (p *fakePusher) Push(_ context.Context, sub models.PushSubscription, _ notify.PushPayload) error {
	if p.err != nil {
		return p.err
	}
	p.pushed = append(p.pushed, sub)
	return nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func pushJob(task models.Task, sub models.PushSubscription) *worker.Job {
	return &worker.Job{
		ID:       "j1",
		Type:     worker.JobTypePushDelivery,
		MaxTries: 3,
		Payload: map[string]string{
			"task_id":         task.ID.String(),
			"subscription_id": sub.ID.String(),
		},
	}
}

func TestHandlePushDelivers(t *testing.T) {
	db := newServerDB(t)
	user := seedUser(t, db)
	sub := seedSubscription(t, db, user.ID)
	task := dueTaskAt(user.ID, time.Now(), models.Lead10Min)
	require.NoError(t, db.Create(&task).Error)

	pusher := &fakePusher{}
	h := NewDeliveryHandlers(db, pusher, &fakeMailer{})

	require.NoError(t, h.HandlePush(context.Background(), pushJob(task, sub)))
	require.Len(t, pusher.pushed, 1)
	assert.Equal(t, sub.ID, pusher.pushed[0].ID)
}

func TestHandlePushGoneEndpointDeregisters(t *testing.T) {
	db := newServerDB(t)
	user := seedUser(t, db)
	sub := seedSubscription(t, db, user.ID)
	task := dueTaskAt(user.ID, time.Now(), models.Lead10Min)
	require.NoError(t, db.Create(&task).Error)

	pusher := &fakePusher{err: notify.ErrEndpointGone}
	h := NewDeliveryHandlers(db, pusher, &fakeMailer{})

	// Job succeeds: the endpoint is gone for good, retrying is useless.
	require.NoError(t, h.HandlePush(context.Background(), pushJob(task, sub)))

	var count int64
	db.Model(&models.PushSubscription{}).Where("id = ?", sub.ID).Count(&count)
	assert.Zero(t, count, "gone endpoint must be deregistered")
}

func TestHandlePushTransientFailurePropagates(t *testing.T) {
	db := newServerDB(t)
	user := seedUser(t, db)
	sub := seedSubscription(t, db, user.ID)
	task := dueTaskAt(user.ID, time.Now(), models.Lead10Min)
	require.NoError(t, db.Create(&task).Error)

	pusher := &fakePusher{err: errors.New("timeout")}
	h := NewDeliveryHandlers(db, pusher, &fakeMailer{})

	assert.Error(t, h.HandlePush(context.Background(), pushJob(task, sub)),
		"transient failure must propagate so the worker retries")

	var count int64
	db.Model(&models.PushSubscription{}).Where("id = ?", sub.ID).Count(&count)
	assert.Equal(t, int64(1), count, "transient failure must not deregister")
}

func TestHandlePushSkipsCompletedTask(t *testing.T) {
	db := newServerDB(t)
	user := seedUser(t, db)
	sub := seedSubscription(t, db, user.ID)
	task := dueTaskAt(user.ID, time.Now(), models.Lead10Min)
	task.Completed = true
	require.NoError(t, db.Create(&task).Error)

	pusher := &fakePusher{}
	h := NewDeliveryHandlers(db, pusher, &fakeMailer{})

	require.NoError(t, h.HandlePush(context.Background(), pushJob(task, sub)))
	assert.Empty(t, pusher.pushed)
}

func TestHandleEmailSends(t *testing.T) {
	db := newServerDB(t)
	user := seedUser(t, db)
	task := dueTaskAt(user.ID, time.Now(), models.Lead10Min)
	require.NoError(t, db.Create(&task).Error)

	mailer := &fakeMailer{}
	h := NewDeliveryHandlers(db, &fakePusher{}, mailer)

	job := &worker.Job{
		Type:     worker.JobTypeEmailDelivery,
		MaxTries: 3,
		Payload:  map[string]string{"task_id": task.ID.String(), "to": user.Email},
	}
	require.NoError(t, h.HandleEmail(context.Background(), job))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, user.Email, mailer.sent[0])
}
