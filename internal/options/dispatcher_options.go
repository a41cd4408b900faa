package options

import (
	"runtime"
	"time"
)

const (
	dispatchQueueSizeDefault = 256
	handlerJobsDefault       = 8
	handlerTimeoutDefault    = time.Second * 30
)

// DispatcherOptions are options for Dispatcher
type DispatcherOptions struct {
	QueueSize      int
	HandlerJobs    int
	HandlerTimeout time.Duration
}

// NewDispatcherOptions returns default initialized DispatcherOptions
func NewDispatcherOptions() *DispatcherOptions {
	return &DispatcherOptions{
		QueueSize:      dispatchQueueSizeDefault,
		HandlerJobs:    min(handlerJobsDefault, runtime.NumCPU()),
		HandlerTimeout: handlerTimeoutDefault,
	}
}
