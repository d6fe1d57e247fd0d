package telemetry

import (
	"runtime"
	"sync"
	"syscall"
	"time"
)

// processSampler tracks process-level CPU and memory usage between
// successive calls, adapted from gastrolog's sysmetrics package.
type processSampler struct {
	mu       sync.Mutex
	lastWall time.Time
	lastUser time.Duration
	lastSys  time.Duration
	lastCPU  float64
}

func newProcessSampler() *processSampler {
	utime, stime := getrusageTimes()
	return &processSampler{lastWall: time.Now(), lastUser: utime, lastSys: stime}
}

// cpuPercent returns process CPU usage as a percentage (0-100+; a
// multi-core process can exceed 100%) since the previous call.
func (p *processSampler) cpuPercent() float64 {
	now := time.Now()
	utime, stime := getrusageTimes()

	p.mu.Lock()
	defer p.mu.Unlock()

	wall := now.Sub(p.lastWall)
	if wall <= 0 {
		return p.lastCPU
	}

	cpuDelta := (utime - p.lastUser) + (stime - p.lastSys)
	pct := float64(cpuDelta) / float64(wall) * 100.0

	p.lastWall = now
	p.lastUser = utime
	p.lastSys = stime
	p.lastCPU = pct
	return pct
}

// memoryInuseBytes returns HeapInuse+StackInuse, the memory actively in
// use by the Go runtime, excluding reserved-but-uncommitted address space.
func memoryInuseBytes() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapInuse + m.StackInuse)
}

func getrusageTimes() (user, sys time.Duration) {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0, 0
	}
	user = time.Duration(rusage.Utime.Nano())
	sys = time.Duration(rusage.Stime.Nano())
	return user, sys
}
