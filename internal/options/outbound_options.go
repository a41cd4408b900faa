package options

import (
	"runtime"
	"time"
)

func min(x, y int) int {
	if x < y {
		return x
	}

	return y
}

const (
	outboundQueueSizeDefault = 1024
	deliveryJobsDefault      = 8
	remoteRPCTimeoutDefault  = time.Second * 6
)

// OutboundOptions are options for Outbound
type OutboundOptions struct {
	QueueSize        int
	DeliveryJobs     int
	RemoteRPCTimeout time.Duration
}

// NewOutboundOptions returns default initialized OutboundOptions
func NewOutboundOptions() *OutboundOptions {
	return &OutboundOptions{
		QueueSize:        outboundQueueSizeDefault,
		DeliveryJobs:     min(deliveryJobsDefault, runtime.NumCPU()),
		RemoteRPCTimeout: remoteRPCTimeoutDefault,
	}
}
