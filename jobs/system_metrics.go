package jobs

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics tracks resource usage for worker pool monitoring
type SystemMetrics struct {
	WorkersActive  int     `json:"workers_active"`  // Workers currently executing jobs
	WorkersTotal   int     `json:"workers_total"`   // Total configured workers
	MemoryUsedGB   float64 `json:"memory_used_gb"`  // Current memory usage in GB
	MemoryTotalGB  float64 `json:"memory_total_gb"` // Total system memory in GB
	MemoryPercent  float64 `json:"memory_percent"`  // Memory utilization percentage
	JobsPending    int     `json:"jobs_pending"`    // Jobs waiting in queue
	JobsProcessing int     `json:"jobs_processing"` // Jobs currently executing
}

// getMemoryStats returns current memory usage in bytes
func getMemoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return v.Total, v.Available, nil
}

// calculateSafeWorkerCount recommends worker count based on available memory.
// Each worker materializes one whole workbook plus its enriched rows, so size
// conservatively at ~1GB per concurrent ingestion.
func calculateSafeWorkerCount(availableGB float64) int {
	const memoryPerWorker = 1.0 // GB per concurrent workbook ingestion
	const memoryBuffer = 2.0    // GB reserved for the rest of the system

	if availableGB < memoryBuffer {
		return 1 // Always allow at least 1 worker
	}

	recommended := int((availableGB - memoryBuffer) / memoryPerWorker)
	if recommended < 1 {
		return 1
	}
	if recommended > 16 {
		return 16
	}
	return recommended
}

// GetSystemMetrics returns current system resource usage
func (wp *WorkerPool) GetSystemMetrics() SystemMetrics {
	total, available, err := getMemoryStats()

	var memUsedGB, memTotalGB, memPercent float64
	if err == nil && total > 0 {
		memTotalGB = float64(total) / 1024 / 1024 / 1024
		memUsedGB = float64(total-available) / 1024 / 1024 / 1024
		memPercent = (memUsedGB / memTotalGB) * 100
	}

	pending, processing, err := wp.queue.Counts()
	if err != nil {
		pending, processing = 0, 0
	}

	wp.mu.Lock()
	activeWorkers := wp.activeWorkers
	wp.mu.Unlock()

	return SystemMetrics{
		WorkersActive:  activeWorkers,
		WorkersTotal:   wp.workers,
		MemoryUsedGB:   memUsedGB,
		MemoryTotalGB:  memTotalGB,
		MemoryPercent:  memPercent,
		JobsPending:    pending,
		JobsProcessing: processing,
	}
}

// checkMemoryPressure validates worker count against available memory.
// Returns a warning message if the worker count may be too high, empty
// string if OK.
func (wp *WorkerPool) checkMemoryPressure() string {
	total, available, err := getMemoryStats()
	if err != nil {
		return "" // Can't check, assume OK
	}

	availableGB := float64(available) / 1024 / 1024 / 1024
	totalGB := float64(total) / 1024 / 1024 / 1024
	recommended := calculateSafeWorkerCount(availableGB)

	if wp.workers > recommended {
		return fmt.Sprintf(
			"Worker count (%d) exceeds recommended (%d) for available memory (%.1f/%.1fGB). "+
				"Consider reducing workers to prevent memory pressure.",
			wp.workers, recommended, totalGB-availableGB, totalGB)
	}

	return ""
}
