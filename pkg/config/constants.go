package config

const (
	EnvPrefix = "KIRAMA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "KIRAMA_APP_ENV"
	EnvPort      = "KIRAMA_APP_PORT"
	EnvDBDSN     = "KIRAMA_DB_DSN"
	EnvDBHost    = "KIRAMA_DB_HOST"
	EnvDBUser    = "KIRAMA_DB_USER"
	EnvDBName    = "KIRAMA_DB_NAME"
	EnvRedisURL  = "KIRAMA_REDIS_URL"
	EnvJWTSecret = "KIRAMA_JWT_SECRET"
	EnvJWTIssuer = "KIRAMA_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
