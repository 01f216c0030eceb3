package process

import (
	"fmt"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time resource sample of a running process.
type Stats struct {
	CPUPercent float64
	RSS        uint64
	Threads    int32
}

// Stats samples CPU usage, resident memory and thread count.
// Returns ErrProcessDone once the process has been reaped.
func (h *Handle) Stats() (Stats, error) {
	if h.HasExited() {
		return Stats{}, ErrProcessDone
	}

	p, err := gopsprocess.NewProcess(int32(h.PID()))
	if err != nil {
		return Stats{}, fmt.Errorf("inspect pid %d: %w", h.PID(), err)
	}

	var s Stats
	if s.CPUPercent, err = p.CPUPercent(); err != nil {
		return Stats{}, fmt.Errorf("cpu of pid %d: %w", h.PID(), err)
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return Stats{}, fmt.Errorf("memory of pid %d: %w", h.PID(), err)
	}
	s.RSS = mem.RSS
	if s.Threads, err = p.NumThreads(); err != nil {
		return Stats{}, fmt.Errorf("threads of pid %d: %w", h.PID(), err)
	}
	return s, nil
}
