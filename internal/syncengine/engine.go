// Package syncengine reconciles the client's local durable store with
// the server of record. Mutations go through a single Apply entry
// point that decides between the online path (direct remote write,
// local mirror) and the offline path (local apply plus queue); the
// drain replays queued mutations in FIFO order when connectivity
// returns.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"task-reminder/backend/internal/events"
	"task-reminder/backend/internal/localstore"
	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
)

var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrNotFound           = errors.New("entity not found")
	ErrForbidden          = errors.New("operation forbidden")
)

// RemoteClient is the Remote Task Service as seen from the client.
// Implementations translate these calls to the server's transport.
type RemoteClient interface {
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, task models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	FetchTask(ctx context.Context, id uuid.UUID) (models.Task, error)
	FetchTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error)

	CreateTaskList(ctx context.Context, list models.TaskList) (models.TaskList, error)
	UpdateTaskList(ctx context.Context, list models.TaskList) (models.TaskList, error)
	DeleteTaskList(ctx context.Context, id uuid.UUID) error
	FetchTaskList(ctx context.Context, id uuid.UUID) (models.TaskList, error)
}

// Conflict records a rejected update: the server's copy was newer than
// the basis of the queued client write.
type Conflict struct {
	EntityID        uuid.UUID         `json:"id"`
	EntityType      models.EntityType `json:"type"`
	Reason          string            `json:"reason"`
	ServerTimestamp time.Time         `json:"server_timestamp"`
	ClientTimestamp time.Time         `json:"client_timestamp"`
}

// DrainResult summarizes one pass over the sync queue.
type DrainResult struct {
	Processed int
	Failed    int
	Dropped   int
	Conflicts []Conflict
}

type Mutation struct {
	EntityType models.EntityType
	Action     models.SyncAction
	Task       *models.Task
	TaskList   *models.TaskList
}

type Engine struct {
	store  *localstore.Store
	remote RemoteClient
	bus    *events.Bus
	online func() bool
}

// NewEngine wires the engine. online reports current connectivity; a
// nil probe means always-online and the engine relies on remote errors
// to fall back.
func NewEngine(store *localstore.Store, remote RemoteClient, bus *events.Bus, online func() bool) *Engine {
	if online == nil {
		online = func() bool { return true }
	}
	return &Engine{store: store, remote: remote, bus: bus, online: online}
}

// Apply is the single entry point for user mutations. Online it writes
// through to the server and mirrors the authoritative row locally;
// offline (or on any remote failure) it applies locally with pending
// status and queues the mutation. A mutation is never lost to a
// network failure.
func (e *Engine) Apply(ctx context.Context, m Mutation) error {
	if !e.online() {
		return e.applyOffline(ctx, m)
	}
	if err := e.applyOnline(ctx, m); err != nil {
		log.Printf("sync: online %s %s failed, queueing offline: %v", m.Action, m.EntityType, err)
		return e.applyOffline(ctx, m)
	}
	return nil
}

func (e *Engine) applyOnline(ctx context.Context, m Mutation) error {
	switch m.EntityType {
	case models.EntityTask:
		return e.applyTaskOnline(ctx, m)
	case models.EntityTaskList:
		return e.applyListOnline(ctx, m)
	default:
		return fmt.Errorf("unknown entity type %q", m.EntityType)
	}
}

func (e *Engine) applyTaskOnline(ctx context.Context, m Mutation) error {
	switch m.Action {
	case models.ActionCreate:
		created, err := e.remote.CreateTask(ctx, *m.Task)
		if err != nil {
			return err
		}
		created.SyncStatus = models.SyncStatusSynced
		created.OfflineCreated = false
		return e.store.SaveTask(ctx, &created)
	case models.ActionUpdate:
		updated, err := e.remote.UpdateTask(ctx, *m.Task)
		if err != nil {
			return err
		}
		updated.SyncStatus = models.SyncStatusSynced
		return e.store.SaveTask(ctx, &updated)
	case models.ActionDelete:
		if err := e.remote.DeleteTask(ctx, m.Task.ID); err != nil {
			return err
		}
		return e.store.DeleteSeries(ctx, m.Task.SeriesID())
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
}

func (e *Engine) applyListOnline(ctx context.Context, m Mutation) error {
	switch m.Action {
	case models.ActionCreate:
		created, err := e.remote.CreateTaskList(ctx, *m.TaskList)
		if err != nil {
			return err
		}
		created.SyncStatus = models.SyncStatusSynced
		return e.store.SaveTaskList(ctx, &created)
	case models.ActionUpdate:
		updated, err := e.remote.UpdateTaskList(ctx, *m.TaskList)
		if err != nil {
			return err
		}
		updated.SyncStatus = models.SyncStatusSynced
		return e.store.SaveTaskList(ctx, &updated)
	case models.ActionDelete:
		if err := e.remote.DeleteTaskList(ctx, m.TaskList.ID); err != nil {
			return err
		}
		return e.store.DeleteTaskList(ctx, m.TaskList.ID)
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
}

// applyOffline writes the mutation locally so the UI observes it
// immediately, then queues it for the next drain.
func (e *Engine) applyOffline(ctx context.Context, m Mutation) error {
	var entityID uuid.UUID
	var payload []byte
	var err error

	switch m.EntityType {
	case models.EntityTask:
		entityID = m.Task.ID
		switch m.Action {
		case models.ActionCreate:
			m.Task.SyncStatus = models.SyncStatusPending
			m.Task.OfflineCreated = true
		case models.ActionUpdate:
			m.Task.SyncStatus = models.SyncStatusUpdated
		case models.ActionDelete:
			m.Task.SyncStatus = models.SyncStatusDeleted
		}
		m.Task.UpdatedAt = time.Now()
		if m.Action == models.ActionDelete {
			err = e.store.MarkTaskDeleted(ctx, m.Task.ID)
		} else {
			err = e.store.SaveTask(ctx, m.Task)
		}
		if err != nil {
			return err
		}
		payload, err = json.Marshal(m.Task)
	case models.EntityTaskList:
		entityID = m.TaskList.ID
		switch m.Action {
		case models.ActionCreate, models.ActionUpdate:
			if m.Action == models.ActionCreate {
				m.TaskList.SyncStatus = models.SyncStatusPending
			} else {
				m.TaskList.SyncStatus = models.SyncStatusUpdated
			}
			m.TaskList.UpdatedAt = time.Now()
			err = e.store.SaveTaskList(ctx, m.TaskList)
		case models.ActionDelete:
			err = e.store.MarkTaskListDeleted(ctx, m.TaskList.ID)
		}
		if err != nil {
			return err
		}
		payload, err = json.Marshal(m.TaskList)
	default:
		return fmt.Errorf("unknown entity type %q", m.EntityType)
	}
	if err != nil {
		return fmt.Errorf("marshal queue payload: %w", err)
	}

	if _, err := e.store.AddToSyncQueue(ctx, m.EntityType, m.Action, entityID, payload); err != nil {
		return err
	}
	return nil
}

// Drain replays queued mutations in enqueue order. Entries are
// processed independently: one poisoned entry does not abort the
// batch. Updates whose basis is older than the server's row become
// conflicts and are withheld; deletes always win. Entries that fail
// the retry ceiling are dropped with a logged error. After the pass,
// conflicted entities are refetched so local state converges on the
// authoritative rows.
func (e *Engine) Drain(ctx context.Context) (*DrainResult, error) {
	entries, err := e.store.PendingQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sync queue: %w", err)
	}

	result := &DrainResult{}
	for _, entry := range entries {
		conflict, err := e.processEntry(ctx, entry)
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			if e.bus != nil {
				e.bus.Publish(events.ConflictDetected{
					EntityID:        conflict.EntityID,
					EntityType:      conflict.EntityType,
					Reason:          conflict.Reason,
					ServerTimestamp: conflict.ServerTimestamp,
					ClientTimestamp: conflict.ClientTimestamp,
				})
			}
			// A conflicted entry is consumed: the client write is
			// withheld and reconciliation happens via refetch.
			if err := e.store.RemoveQueueEntry(ctx, entry.ID); err != nil {
				log.Printf("sync: remove conflicted entry %s: %v", entry.ID, err)
			}
			continue
		}
		if err != nil {
			result.Failed++
			retries, rerr := e.store.IncrementRetry(ctx, entry.ID)
			if rerr != nil {
				log.Printf("sync: increment retry for %s: %v", entry.ID, rerr)
				continue
			}
			entry.RetryCount = retries
			if entry.Exhausted() {
				log.Printf("sync: dropping entry %s (%s %s %s) after %d failed attempts: %v",
					entry.ID, entry.Action, entry.EntityType, entry.EntityID, retries, err)
				if derr := e.store.RemoveQueueEntry(ctx, entry.ID); derr != nil {
					log.Printf("sync: drop exhausted entry %s: %v", entry.ID, derr)
				}
				result.Dropped++
			}
			continue
		}
		if err := e.store.RemoveQueueEntry(ctx, entry.ID); err != nil {
			log.Printf("sync: remove processed entry %s: %v", entry.ID, err)
		}
		result.Processed++
	}

	e.refetchConflicted(ctx, result.Conflicts)

	if e.bus != nil {
		e.bus.Publish(events.SyncCompleted{
			Processed: result.Processed,
			Dropped:   result.Dropped,
			Conflicts: len(result.Conflicts),
		})
	}
	return result, nil
}

// processEntry applies one queue entry. A non-nil Conflict means the
// write was withheld; err is a transport/application failure that
// counts against the retry ceiling.
func (e *Engine) processEntry(ctx context.Context, entry models.SyncQueueEntry) (*Conflict, error) {
	switch entry.EntityType {
	case models.EntityTask:
		return e.processTaskEntry(ctx, entry)
	case models.EntityTaskList:
		return e.processListEntry(ctx, entry)
	default:
		return nil, fmt.Errorf("unknown entity type %q", entry.EntityType)
	}
}

func (e *Engine) processTaskEntry(ctx context.Context, entry models.SyncQueueEntry) (*Conflict, error) {
	var task models.Task
	if err := json.Unmarshal(entry.Payload, &task); err != nil {
		return nil, fmt.Errorf("decode queued task: %w", err)
	}

	switch entry.Action {
	case models.ActionCreate:
		created, err := e.remote.CreateTask(ctx, task)
		if err != nil {
			return nil, err
		}
		created.SyncStatus = models.SyncStatusSynced
		created.OfflineCreated = false
		if err := e.store.SaveTask(ctx, &created); err != nil {
			log.Printf("sync: mirror created task %s: %v", created.ID, err)
		}
		return nil, nil
	case models.ActionUpdate:
		serverCopy, err := e.remote.FetchTask(ctx, task.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// Server strictly newer than the client's basis: conflict.
		// Last-writer-wins is deliberately not applied to diverged rows.
		if err == nil && serverCopy.UpdatedAt.After(task.UpdatedAt) {
			return &Conflict{
				EntityID:        task.ID,
				EntityType:      models.EntityTask,
				Reason:          "server copy is newer than client basis",
				ServerTimestamp: serverCopy.UpdatedAt,
				ClientTimestamp: task.UpdatedAt,
			}, nil
		}
		updated, err := e.remote.UpdateTask(ctx, task)
		if err != nil {
			return nil, err
		}
		updated.SyncStatus = models.SyncStatusSynced
		if err := e.store.SaveTask(ctx, &updated); err != nil {
			log.Printf("sync: mirror updated task %s: %v", updated.ID, err)
		}
		return nil, nil
	case models.ActionDelete:
		// Delete always wins; no conflict check.
		if err := e.remote.DeleteTask(ctx, task.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err := e.store.DeleteSeries(ctx, task.SeriesID()); err != nil {
			log.Printf("sync: purge deleted series %s: %v", task.SeriesID(), err)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown action %q", entry.Action)
	}
}

func (e *Engine) processListEntry(ctx context.Context, entry models.SyncQueueEntry) (*Conflict, error) {
	var list models.TaskList
	if err := json.Unmarshal(entry.Payload, &list); err != nil {
		return nil, fmt.Errorf("decode queued task list: %w", err)
	}

	switch entry.Action {
	case models.ActionCreate:
		created, err := e.remote.CreateTaskList(ctx, list)
		if err != nil {
			return nil, err
		}
		created.SyncStatus = models.SyncStatusSynced
		if err := e.store.SaveTaskList(ctx, &created); err != nil {
			log.Printf("sync: mirror created list %s: %v", created.ID, err)
		}
		return nil, nil
	case models.ActionUpdate:
		serverCopy, err := e.remote.FetchTaskList(ctx, list.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err == nil && serverCopy.UpdatedAt.After(list.UpdatedAt) {
			return &Conflict{
				EntityID:        list.ID,
				EntityType:      models.EntityTaskList,
				Reason:          "server copy is newer than client basis",
				ServerTimestamp: serverCopy.UpdatedAt,
				ClientTimestamp: list.UpdatedAt,
			}, nil
		}
		updated, err := e.remote.UpdateTaskList(ctx, list)
		if err != nil {
			return nil, err
		}
		updated.SyncStatus = models.SyncStatusSynced
		if err := e.store.SaveTaskList(ctx, &updated); err != nil {
			log.Printf("sync: mirror updated list %s: %v", updated.ID, err)
		}
		return nil, nil
	case models.ActionDelete:
		if err := e.remote.DeleteTaskList(ctx, list.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err := e.store.DeleteTaskList(ctx, list.ID); err != nil {
			log.Printf("sync: purge deleted list %s: %v", list.ID, err)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown action %q", entry.Action)
	}
}

// refetchConflicted adopts the authoritative server rows for entities
// whose queued writes were withheld. Server-wins on reconcile; the
// conflict list tells the UI what was overwritten.
func (e *Engine) refetchConflicted(ctx context.Context, conflicts []Conflict) {
	for _, c := range conflicts {
		switch c.EntityType {
		case models.EntityTask:
			server, err := e.remote.FetchTask(ctx, c.EntityID)
			if err != nil {
				log.Printf("sync: refetch conflicted task %s: %v", c.EntityID, err)
				continue
			}
			server.SyncStatus = models.SyncStatusSynced
			if err := e.store.SaveTask(ctx, &server); err != nil {
				log.Printf("sync: adopt server task %s: %v", c.EntityID, err)
			}
		case models.EntityTaskList:
			server, err := e.remote.FetchTaskList(ctx, c.EntityID)
			if err != nil {
				log.Printf("sync: refetch conflicted list %s: %v", c.EntityID, err)
				continue
			}
			server.SyncStatus = models.SyncStatusSynced
			if err := e.store.SaveTaskList(ctx, &server); err != nil {
				log.Printf("sync: adopt server list %s: %v", c.EntityID, err)
			}
		}
	}
}
