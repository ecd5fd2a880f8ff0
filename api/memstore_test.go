package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory TaskStore. Tasks are stored through serializeTask so tests exercise
// the same encoding Redis sees.
type memStore struct {
	mu       sync.Mutex
	tasks    map[string]map[string]string
	queue    chan string
	history  []string // status transitions, "id:status"
	failPush error
	failGet  error
}

func newMemStore() *memStore {
	return &memStore{
		tasks: make(map[string]map[string]string),
		queue: make(chan string, 16),
	}
}

func (m *memStore) put(task *ScanTask) error {
	data, err := serializeTask(task)
	if err != nil {
		return err
	}
	flat := make(map[string]string, len(data))
	for k, v := range data {
		flat[k] = v.(string)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = flat
	m.history = append(m.history, task.ID+":"+task.Status)
	return nil
}

func (m *memStore) CreateTask(_ context.Context, task *ScanTask) error { return m.put(task) }

func (m *memStore) UpdateTask(_ context.Context, task *ScanTask) error { return m.put(task) }

func (m *memStore) GetTask(_ context.Context, id string) (*ScanTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	data, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return deserializeTask(data)
}

func (m *memStore) PushToQueue(_ context.Context, taskID string) error {
	if m.failPush != nil {
		return m.failPush
	}
	m.queue <- taskID
	return nil
}

func (m *memStore) PopFromQueue(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case id := <-m.queue:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(timeout):
		return "", ErrQueueEmpty
	}
}

func (m *memStore) task(id string) *ScanTask {
	task, err := m.GetTask(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return task
}

func (m *memStore) statuses(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, entry := range m.history {
		if status, ok := strings.CutPrefix(entry, id+":"); ok {
			out = append(out, status)
		}
	}
	return out
}

var errBoom = errors.New("boom")
