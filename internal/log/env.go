package log

import "os"

// Environment selects the zap config profile a process runs under.
type Environment string

const (
	EnvDev       Environment = "dev"
	EnvProd      Environment = "prod"
	EnvContainer Environment = "container"
)

var validEnvironments = map[Environment]bool{
	EnvDev:       true,
	EnvProd:      true,
	EnvContainer: true,
}

// currentEnvironment is read once at logger construction time; it is set by
// InitEnvironment or derived from the process environment as a fallback.
var currentEnvironment Environment

// InitEnvironment records the environment the caller resolved from config.
// If never called, createLogger derives one from the process environment.
func InitEnvironment(env Environment) {
	currentEnvironment = env
}

func resolveEnvironment() Environment {
	if currentEnvironment != "" && validEnvironments[currentEnvironment] {
		return currentEnvironment
	}
	return deriveEnvironmentFromSystem()
}

func deriveEnvironmentFromSystem() Environment {
	if isRunningInContainer() {
		return EnvContainer
	}
	if os.Getenv("PRICECOALESCER_ENV") == "prod" {
		return EnvProd
	}
	return EnvDev
}

func isRunningInContainer() bool {
	for _, indicator := range []string{"KUBERNETES_SERVICE_HOST", "container"} {
		if os.Getenv(indicator) != "" {
			return true
		}
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func shouldUseStderr(env Environment) bool {
	return env == EnvDev || env == EnvContainer
}
