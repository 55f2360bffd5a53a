package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names.
const EnvPrefix = "healthstack"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "HEALTHSTACK_DB_DSN"
	EnvDBHost = "HEALTHSTACK_DB_HOST"
	EnvDBUser = "HEALTHSTACK_DB_USER"
	EnvDBName = "HEALTHSTACK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
