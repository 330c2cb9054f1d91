package store

import (
	"sort"
	"sync"
)

// observers fans a state snapshot out to subscribed callbacks.
type observers[S any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(S)
}

func (o *observers[S]) subscribe(fn func(S)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fns == nil {
		o.fns = make(map[int]func(S))
	}

	id := o.next
	o.next++
	o.fns[id] = fn

	var once sync.Once

	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()

			delete(o.fns, id)
		})
	}
}

// notify calls subscribers in subscription order, outside the lock so a callback
// may unsubscribe or read the store.
func (o *observers[S]) notify(state S) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	fns := make([]func(S), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
