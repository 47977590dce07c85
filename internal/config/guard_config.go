package config

import "time"

type GuardConfig interface {
	GetGraceWindow() time.Duration
	GetIdleTimeout() time.Duration
	GetAuditQueueSize() int
	GetAdminLoginPath() string
	GetSubscriberLoginPath() string
	GetUnauthorizedPath() string
	GetUpgradePath() string
}

type Guard struct{}

var _ GuardConfig = Guard{}

// GetGraceWindow is how long a mount waits for a late session restore
// before settling as unauthenticated.
func (Guard) GetGraceWindow() time.Duration {
	return GetDuration("GRACE_WINDOW", 1*time.Second)
}

func (Guard) GetIdleTimeout() time.Duration {
	return GetDuration("IDLE_TIMEOUT", 20*time.Minute)
}

func (Guard) GetAuditQueueSize() int {
	return GetInt("AUDIT_QUEUE_SIZE", 256)
}

func (Guard) GetAdminLoginPath() string {
	return "/login-admin"
}

func (Guard) GetSubscriberLoginPath() string {
	return "/area-do-assinante"
}

func (Guard) GetUnauthorizedPath() string {
	return "/acesso-negado"
}

func (Guard) GetUpgradePath() string {
	return "/planos"
}
