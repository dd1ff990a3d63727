package config

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

// StoreConfig selects the key/value backend. Redis connection settings are
// decoded separately by the redis package.
type StoreConfig interface {
	GetStoreBackend() string
	GetStoreKeyPrefix() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() string {
	return GetEnv("STORE_BACKEND", StoreBackendMemory)
}

func (Store) GetStoreKeyPrefix() string {
	return GetEnv("STORE_KEY_PREFIX", "")
}
