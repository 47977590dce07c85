package sessions

import "sync"

// Listeners is a goroutine-safe set of change callbacks. Providers embed it
// to implement Provider.Subscribe.
type Listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func()
}

// Subscribe adds fn and returns a func that removes it. Calling the
// returned func more than once is a no-op.
func (l *Listeners) Subscribe(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns, id)
		})
	}
}

// Publish calls every subscribed func. Callbacks run outside the lock so
// they may subscribe or unsubscribe.
func (l *Listeners) Publish() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of subscribed callbacks
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
