package memstore

import (
	"context"
	"sync"

	"github.com/thereayou/matchmaker/internal/matchmaking"
)

type Queue struct {
	mu    sync.Mutex
	names []string
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) PushBack(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.names = append(q.names, name)
	return nil
}

func (q *Queue) RemoveAll(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.names[:0]
	for _, n := range q.names {
		if n != name {
			kept = append(kept, n)
		}
	}
	q.names = kept
	return nil
}

func (q *Queue) Snapshot(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.names...), nil
}

var _ matchmaking.WaitQueue = (*Queue)(nil)
