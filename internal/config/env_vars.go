package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/rs/zerolog/log"
)

const (
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	runModeVar        = "ENV"
	logLevelVar       = "LOG_LEVEL"
	deploymentEnvVar  = "DEPLOYMENT_ENVIRONMENT"
	defaultDeployment = string(sessions.EnvironmentLocal)
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Portal Sessions")
}

// GetEnv returns the run mode. DEV enables console logging.
func (EnvVars) GetEnv() string {
	return GetEnv(runModeVar, "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetDeploymentEnvironment is the deployment tier, one of the session environments.
func (EnvVars) GetDeploymentEnvironment() string {
	return GetEnv(deploymentEnvVar, defaultDeployment)
}

func (e EnvVars) IsProduction() bool {
	return sessions.Environment(e.GetDeploymentEnvironment()).IsProduction()
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func getInt(envVar string, defaultValue int) int {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("Invalid integer, using default")
		return defaultValue
	}
	return n
}
