package config

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	SessionConfig
	StoreConfig
	OTCConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDeploymentEnvironment() string
	IsProduction() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Token
	Session
	Store
	OTC
}

func New() Config {
	return mainConfig{}
}
