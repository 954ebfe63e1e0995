package threadservice

import (
	"sync"

	"github.com/Swind/go-thread-service/core"
)

// =============================================================================
// Global Thread Service Helper (Singleton)
// =============================================================================

var (
	globalService *Service
	globalMu      sync.Mutex
)

// InitGlobalService creates and activates the process-wide Service.
// Later calls return nil and leave the existing service untouched.
func InitGlobalService(cfg ServiceConfig) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalService != nil {
		return nil // Already initialized
	}

	svc := NewService(cfg)
	if err := svc.Activate(); err != nil {
		return err
	}
	globalService = svc
	return nil
}

// GetGlobalService returns the process-wide Service.
// It panics if InitGlobalService has not been called.
func GetGlobalService() *Service {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalService == nil {
		panic("global thread service not initialized. Call InitGlobalService() first.")
	}
	return globalService
}

// ShutdownGlobalService deactivates the process-wide Service.
func ShutdownGlobalService() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalService != nil {
		globalService.Deactivate()
		globalService = nil
	}
}

// Submit runs task on the global service's pool with the given id.
func Submit(name string, task core.Task, id PoolID) (core.AdmissionResult, error) {
	return GetGlobalService().Submit(name, task, id)
}
