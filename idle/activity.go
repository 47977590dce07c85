package idle

import "github.com/jrsteele09/portal-guard/sessions"

// ActivitySource delivers user-activity signals (pointer, key, scroll,
// click, or any request from the browser)
type ActivitySource interface {
	Listen(fn func()) (stop func())
}

// Feed is an ActivitySource fed by calling Signal
type Feed struct {
	listeners sessions.Listeners
}

var _ ActivitySource = (*Feed)(nil)

func NewFeed() *Feed {
	return &Feed{}
}

func (f *Feed) Listen(fn func()) func() {
	return f.listeners.Subscribe(fn)
}

// Signal reports one activity event to every listener
func (f *Feed) Signal() {
	f.listeners.Publish()
}

// Listeners returns how many listeners are attached
func (f *Feed) Listeners() int {
	return f.listeners.Len()
}
