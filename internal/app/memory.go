package app

import (
	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/internal/repository/memory"
	"rentflow/property-portal/property-portal-backend/internal/triggers"
)

// MemoryStores returns process-local stores for demos and tests. Nothing
// survives a restart.
func MemoryStores() (Stores, *memory.Store) {
	store := memory.New()
	return Stores{
		UoW:           store,
		Audit:         audit.NewMemoryRepository(),
		Notifications: notifications.NewMemoryRepository(),
		Triggers:      triggers.NewMemoryRepository(),
	}, store
}
