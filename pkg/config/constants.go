package config

const (
	EnvPrefix = "SPPG"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                = "SPPG_APP_ENV"
	EnvPort                  = "SPPG_APP_PORT"
	EnvDBDSN                 = "SPPG_DB_DSN"
	EnvDBHost                = "SPPG_DB_HOST"
	EnvDBUser                = "SPPG_DB_USER"
	EnvDBName                = "SPPG_DB_NAME"
	EnvDBPassword            = "SPPG_DB_PASSWORD"
	EnvRedisURL              = "SPPG_REDIS_URL"
	EnvJWTSecret             = "SPPG_JWT_SECRET"
	EnvJWTIssuer             = "SPPG_JWT_ISSUER"
	EnvBreakdownTolerancePct = "SPPG_BUDGET_BREAKDOWN_TOLERANCE_PCT"
	EnvEscalationInterval    = "SPPG_ESCALATION_SWEEP_INTERVAL"

	DefaultBreakdownTolerancePct = 1
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
