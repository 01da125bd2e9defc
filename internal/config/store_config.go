package config

const (
	storeBackendVar   = "STORE_BACKEND"
	sqlitePathVar     = "SQLITE_PATH"
	redisURLVar       = "REDIS_URL"
	redisKeyPrefixVar = "REDIS_KEY_PREFIX"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendSQLite = "sqlite"
	StoreBackendRedis  = "redis"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetSQLitePath() string
	GetRedisURL() string
	GetRedisKeyPrefix() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() string {
	return GetEnv(storeBackendVar, StoreBackendSQLite)
}

func (Store) GetSQLitePath() string {
	return GetEnv(sqlitePathVar, "./data/installations.db")
}

func (Store) GetRedisURL() string {
	return GetEnv(redisURLVar, "redis://localhost:6379/0")
}

func (Store) GetRedisKeyPrefix() string {
	return GetEnv(redisKeyPrefixVar, "slackmcp:")
}
