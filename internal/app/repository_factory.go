package app

import (
	"fmt"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/persistence"
)

// Repositories groups the workload repositories for one connection.
type Repositories struct {
	Members    *persistence.MemberRepository
	Tasks      *persistence.TaskRepository
	Capacity   *persistence.CapacityRepository
	Priorities *persistence.PriorityRepository
	Settings   *persistence.SettingsRepository
	SyncState  *persistence.SyncStateRepository
}

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// Build creates every repository. The repositories share one SQL dialect
// layer, so the driver only has to be one the dialect knows.
func (f *RepositoryFactory) Build() (*Repositories, error) {
	switch f.driver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}

	return &Repositories{
		Members:    persistence.NewMemberRepository(f.conn),
		Tasks:      persistence.NewTaskRepository(f.conn),
		Capacity:   persistence.NewCapacityRepository(f.conn),
		Priorities: persistence.NewPriorityRepository(f.conn),
		Settings:   persistence.NewSettingsRepository(f.conn),
		SyncState:  persistence.NewSyncStateRepository(f.conn),
	}, nil
}

// Driver returns the configured database driver.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}
