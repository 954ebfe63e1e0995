//go:build linux

package core

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// HardwareConcurrency returns the number of CPUs this process may run on.
func HardwareConcurrency() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// currentThreadID identifies the OS thread running the caller.
func currentThreadID() int {
	return unix.Gettid()
}
