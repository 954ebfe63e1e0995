package threadservice

import "github.com/Swind/go-thread-service/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the threadservice package for most use cases.

// Task is the unit of work run by pools and threaders
type Task = core.Task

// TaskFunc adapts a function to Task
type TaskFunc = core.TaskFunc

// Threader is a named, joinable thread running one task
type Threader = core.Threader

// ThreadPool is re-exported for type compatibility
type ThreadPool = core.ThreadPool

// AdmissionResult is returned by Submit
type AdmissionResult = core.AdmissionResult

// PoolStats is a pool counter snapshot
type PoolStats = core.PoolStats

// Ownership decides whether a pool disposes a task after running it
type Ownership = core.Ownership

// DrainPolicy decides admission while a pool drains
type DrainPolicy = core.DrainPolicy

// Ownership and drain policy constants
const (
	Borrowed = core.Borrowed
	Owned    = core.Owned

	DrainBlockInvoke = core.DrainBlockInvoke
	DrainDenyInvoke  = core.DrainDenyInvoke
	DrainAllowInvoke = core.DrainAllowInvoke
)

// CurrentThreader retrieves the Threader running a task from its context
var CurrentThreader = core.CurrentThreader
