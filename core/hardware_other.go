//go:build !linux

package core

import (
	"bytes"
	"runtime"
	"strconv"
)

// HardwareConcurrency returns the number of logical CPUs.
func HardwareConcurrency() int {
	return runtime.NumCPU()
}

// currentThreadID identifies the caller. Without gettid the goroutine id is
// used; a Threader's goroutine stays locked to its thread, so the two agree.
func currentThreadID() int {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.Fields(bytes.TrimPrefix(buf[:n], []byte("goroutine ")))
	if len(field) == 0 {
		return -1
	}
	id, err := strconv.Atoi(string(field[0]))
	if err != nil {
		return -1
	}
	return id
}
