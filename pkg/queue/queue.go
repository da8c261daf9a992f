// Package queue holds book release callbacks that could not be delivered
// to the catalog right away. The gateway drains it in the background so a
// returned book does not stay marked unavailable forever.
package queue

import (
	"sync"
	"time"
)

type ReleaseTask struct {
	LoanUid  string
	BookUid  string
	RetryAt  time.Time
	Attempts int
}

type Queue struct {
	mu    sync.Mutex
	tasks []*ReleaseTask
}

func NewQueue() *Queue {
	return &Queue{
		tasks: make([]*ReleaseTask, 0),
	}
}

func (q *Queue) Enqueue(task *ReleaseTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

// Dequeue pops the first task whose RetryAt has passed, or nil.
func (q *Queue) Dequeue() *ReleaseTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for i, task := range q.tasks {
		if !task.RetryAt.After(now) {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return task
		}
	}
	return nil
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
