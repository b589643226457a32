package registry

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a device registry
type RepositoryConfig struct {
	// DB is required for PostgreSQL registries (DBTX interface)
	DB DBTX
}

// NewDeviceRegistry creates a new device registry based on the persistence type
func NewDeviceRegistry(persistenceType string, config RepositoryConfig) (DeviceRegistry, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres registry")
		}
		return NewPostgresDeviceRegistry(config.DB), nil
	case "inmem", "memory":
		return NewInMemDeviceRegistry(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
