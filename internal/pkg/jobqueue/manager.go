package jobqueue

import (
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/redrule/reddigen/internal/pkg/env"
)

// Manager manages the global job queue
type Manager struct {
	queue   *Queue
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if v := env.GetEnv("JOB_QUEUE_WORKERS", ""); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				workerCount = n
			}
		}

		globalManager = &Manager{
			queue: NewQueue(workerCount),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true

	log.Info("[JobQueue Manager] Starting job queue")
	m.queue.Start()
}

// Stop stops the job queue workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false

	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped")
}
