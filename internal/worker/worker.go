// Package worker runs reminder fan-out jobs off a redis list queue.
// The due scanner enqueues one job per delivery; handlers call the
// push/email collaborators. Failed jobs retry with backoff up to a
// ceiling, then land on the dead queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypePushDelivery  JobType = "push_delivery"
	JobTypeEmailDelivery JobType = "email_delivery"
)

const (
	QueueReminders = "reminders"
	QueueRetry     = "reminders_retry"
	QueueDead      = "reminders_dead"
)

type Job struct {
	ID        string            `json:"id"`
	Type      JobType           `json:"type"`
	Payload   map[string]string `json:"payload"`
	Attempts  int               `json:"attempts"`
	MaxTries  int               `json:"max_tries"`
	CreatedAt time.Time         `json:"created_at"`
	ProcessAt time.Time         `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client   *redis.Client
	handlers map[JobType]JobHandler
	queues   []string
	poll     time.Duration
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type Config struct {
	RedisClient *redis.Client
	Queues      []string
	// PollInterval bounds how long a blocking pop waits before the
	// loop re-checks for shutdown.
	PollInterval time.Duration
}

func NewWorker(config Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	queues := config.Queues
	if len(queues) == 0 {
		queues = []string{QueueReminders, QueueRetry}
	}
	poll := config.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Worker{
		client:   config.RedisClient,
		handlers: make(map[JobType]JobHandler),
		queues:   queues,
		poll:     poll,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start(concurrency int) {
	log.Printf("Starting reminder worker with %d goroutines", concurrency)
	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
}

func (w *Worker) Stop() {
	log.Println("Stopping reminder worker...")
	w.cancel()
	w.wg.Wait()
	log.Println("Reminder worker stopped")
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			if err := w.processNextJob(); err != nil {
				log.Printf("Error processing delivery job: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) processNextJob() error {
	result, err := w.client.BLPop(w.ctx, w.poll, w.queues...).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	queue := result[0]
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	// Backoff delay not yet reached: put it back.
	if time.Now().Before(job.ProcessAt) {
		return w.enqueue(queue, &job)
	}

	return w.executeJob(&job)
}

func (w *Worker) executeJob(job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for job type: %s", job.Type)
	}

	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	if err := handler(ctx, job); err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			log.Printf("Delivery job %s failed (attempt %d/%d), retrying: %v",
				job.ID, job.Attempts, job.MaxTries, err)
			job.ProcessAt = time.Now().Add(time.Duration(1<<job.Attempts) * time.Minute)
			return w.enqueue(QueueRetry, job)
		}
		log.Printf("Delivery job %s failed permanently after %d attempts: %v",
			job.ID, job.Attempts, err)
		return w.moveToDeadQueue(job, err)
	}
	return nil
}

func (w *Worker) enqueue(queue string, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return w.client.RPush(w.ctx, queue, jobData).Err()
}

func (w *Worker) moveToDeadQueue(job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now(),
	}
	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	return w.client.RPush(w.ctx, QueueDead, deadJobData).Err()
}

// JobQueue is the producer side used by the due scanner.
type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(queue string, jobType JobType, payload map[string]string) error {
	job := &Job{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      jobType,
		Payload:   payload,
		Attempts:  0,
		MaxTries:  3,
		CreatedAt: time.Now(),
		ProcessAt: time.Now(),
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return q.client.RPush(ctx, queue, jobData).Err()
}

func (q *JobQueue) GetQueueSize(queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}
