package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SubFox/app/repository"
	"github.com/ManuelReschke/SubFox/internal/pkg/billing"
	"github.com/ManuelReschke/SubFox/internal/pkg/env"
	"github.com/ManuelReschke/SubFox/internal/pkg/notification"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue             *Queue
	catalogSyncTicker *time.Ticker
	stopCh            chan struct{}
	wg                sync.WaitGroup
	mu                sync.Mutex
	running           bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager wires the global manager with its injected collaborators.
// Must run before GetManager so no component falls back to ambient state.
func InitManager(notifier notification.Dispatcher, stripe *billing.StripeClient, prices repository.PriceMappingRepository) *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if v, err := strconv.Atoi(env.GetEnv("JOBQUEUE_WORKERS", "")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount, notifier, stripe, prices),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	if globalManager == nil {
		panic("Job queue manager not initialized. Call InitManager first.")
	}
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Periodic provider price catalog refresh
	syncInterval := 60 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("CATALOG_SYNC_INTERVAL_MINUTES", "")); err == nil && v > 0 {
		syncInterval = time.Duration(v) * time.Minute
	}
	m.catalogSyncTicker = time.NewTicker(syncInterval)
	m.wg.Add(1)
	go m.catalogSyncWorker()
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks")
	close(m.stopCh)
	m.running = false

	if m.catalogSyncTicker != nil {
		m.catalogSyncTicker.Stop()
	}

	m.wg.Wait()
	m.queue.Stop()
}

// catalogSyncWorker enqueues a catalog sync on startup and on every tick.
func (m *Manager) catalogSyncWorker() {
	defer m.wg.Done()

	m.enqueueCatalogSync("startup")
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.catalogSyncTicker.C:
			m.enqueueCatalogSync("ticker")
		}
	}
}

func (m *Manager) enqueueCatalogSync(requestedBy string) {
	payload := CatalogSyncJobPayload{RequestedBy: requestedBy}
	if _, err := m.queue.EnqueueJob(JobTypeCatalogSync, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue Manager] Failed to enqueue catalog sync: %v", err)
	}
}

// EnqueueCancellationNotice queues a cancellation email. Satisfies the
// billing.NotificationEnqueuer interface.
func (m *Manager) EnqueueCancellationNotice(email, username string) error {
	payload := NotificationJobPayload{
		Kind:     NotificationKindCancellation,
		Email:    email,
		Username: username,
	}
	_, err := m.queue.EnqueueJob(JobTypeSendNotification, payload.ToMap())
	return err
}

// EnqueuePaymentFailureNotice queues a payment failure email. Satisfies the
// billing.NotificationEnqueuer interface.
func (m *Manager) EnqueuePaymentFailureNotice(email, username string) error {
	payload := NotificationJobPayload{
		Kind:     NotificationKindPaymentFailure,
		Email:    email,
		Username: username,
	}
	_, err := m.queue.EnqueueJob(JobTypeSendNotification, payload.ToMap())
	return err
}
