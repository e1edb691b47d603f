// Package constants holds configuration values that select runtime behaviour.
package constants

// Environments
const (
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

// Credential store drivers
const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverMySQL    = "mysql"
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverMemory   = "memory"
)

// Session store backends
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Notifier providers
const (
	NotifierProviderLog    = "log"
	NotifierProviderSMTP   = "smtp"
	NotifierProviderPubSub = "pubsub"
	NotifierProviderLocal  = "local"
)
