package workers

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the resource usage of the chat process itself.
type ProcessStats struct {
	RSS        uint64
	CPUPercent float64
}

// SelfSampler reads ProcessStats for the current pid.
type SelfSampler struct {
	proc *process.Process
}

func NewSelfSampler() (*SelfSampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &SelfSampler{proc: p}, nil
}

func (s *SelfSampler) Sample() (ProcessStats, error) {
	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := s.proc.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{RSS: memInfo.RSS, CPUPercent: cpuPercent}, nil
}
