package config

type Config interface {
	EnvConfig
	GuardConfig
	RemoteConfig
	AccountsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetBaseURL() string
	GetEnv() string
}

type AccountsConfig interface {
	GetAccountsFile() string
}

type mainConfig struct {
	EnvVars
	Guard
	Remote
}

func New() Config {
	return mainConfig{}
}
