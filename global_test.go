package threadservice

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-thread-service/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGlobalService_Lifecycle verifies the singleton helpers
// Given: no global service
// When: it is initialized twice, used and shut down
// Then: the first service is kept, Submit runs on it, and GetGlobalService panics after shutdown
func TestGlobalService_Lifecycle(t *testing.T) {
	require.NoError(t, InitGlobalService(ServiceConfig{GlobalThreads: 2, Logger: core.NewNoOpLogger()}))
	first := GetGlobalService()
	require.NoError(t, InitGlobalService(ServiceConfig{GlobalThreads: 8}))
	assert.Same(t, first, GetGlobalService())

	done := make(chan struct{})
	_, err := Submit("global", TaskFunc(func(ctx context.Context, th *Threader) error {
		close(done)
		return nil
	}), GlobalPoolID)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("global submit did not run")
	}

	ShutdownGlobalService()
	assert.Panics(t, func() { GetGlobalService() })
	ShutdownGlobalService()
}
