// Package notify is the boundary through which the guard raises
// user-visible messages. Rendering them is the caller's concern.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Severity of a notice
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a single user-visible message
type Notice struct {
	Title       string
	Description string
	Severity    Severity
}

// Notices raised by the guard
var (
	AccessDenied = Notice{
		Title:       "Acesso negado",
		Description: "Você não tem permissão para acessar esta página.",
		Severity:    SeverityWarning,
	}
	SessionExpired = Notice{
		Title:       "Sessão expirada",
		Description: "Sua sessão foi encerrada por inatividade. Faça login novamente.",
		Severity:    SeverityInfo,
	}
	LoginFailed = Notice{
		Title:       "Falha no login",
		Description: "E-mail ou senha inválidos.",
		Severity:    SeverityError,
	}
)

// Notifier delivers notices. Implementations must not block the caller for long.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a func to Notifier
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// LogNotifier writes notices to the diagnostic log
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func NewLogNotifier() LogNotifier {
	return LogNotifier{}
}

func (LogNotifier) Notify(ctx context.Context, n Notice) {
	log.Info().Str("severity", string(n.Severity)).Str("title", n.Title).Msg(n.Description)
}

// Recorder keeps notices in memory until drained
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

var _ Notifier = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(ctx context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Drain returns the recorded notices and clears them
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	notices := r.notices
	r.notices = nil
	return notices
}

// Count returns how many recorded notices have the given title
func (r *Recorder) Count(title string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notices {
		if n.Title == title {
			count++
		}
	}
	return count
}

// Multi fans a notice out to several notifiers
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notice) {
		for _, notifier := range notifiers {
			notifier.Notify(ctx, n)
		}
	})
}
