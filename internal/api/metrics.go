package api

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessMetrics собирает показатели процесса песочницы
type ProcessMetrics struct {
	StartTime time.Time

	once sync.Once
	proc *process.Process
	err  error
}

// NewProcessMetrics создает новый экземпляр метрик
func NewProcessMetrics() *ProcessMetrics {
	return &ProcessMetrics{
		StartTime: time.Now(),
	}
}

// GetUptime возвращает время работы в читаемом виде
func (pm *ProcessMetrics) GetUptime() string {
	uptime := time.Since(pm.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

func (pm *ProcessMetrics) process() (*process.Process, error) {
	pm.once.Do(func() {
		pm.proc, pm.err = process.NewProcess(int32(os.Getpid()))
	})
	return pm.proc, pm.err
}

// GetCPUUsage возвращает использование CPU процессом в процентах
func (pm *ProcessMetrics) GetCPUUsage() (float64, error) {
	proc, err := pm.process()
	if err == nil {
		if percent, perr := proc.CPUPercent(); perr == nil {
			return percent, nil
		}
	}

	// Если не удалось получить метрику процесса, берём системную без ожидания
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("нет данных о загрузке CPU")
	}
	return percents[0], nil
}

// GetRSSMegabytes возвращает резидентную память процесса в MB
func (pm *ProcessMetrics) GetRSSMegabytes() (float64, error) {
	proc, err := pm.process()
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return float64(info.RSS) / 1024 / 1024, nil
}

// GetDetailedMemoryStats возвращает статистику памяти рантайма Go
func (pm *ProcessMetrics) GetDetailedMemoryStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"alloc_mb":      float64(m.Alloc) / 1024 / 1024,
		"sys_mb":        float64(m.Sys) / 1024 / 1024,
		"heap_alloc_mb": float64(m.HeapAlloc) / 1024 / 1024,
		"num_gc":        m.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}
}
