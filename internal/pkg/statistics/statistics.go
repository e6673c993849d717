package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/ManuelReschke/SubFox/app/models"
	"github.com/ManuelReschke/SubFox/internal/pkg/cache"
	"github.com/ManuelReschke/SubFox/internal/pkg/database"
)

const (
	CacheKeyUsersTotal         = "statistics:users:total"
	CacheKeySubscriptionsPaid  = "statistics:subscriptions:paid"
	CacheKeyWebhookEventsToday = "statistics:webhook_events:today"
	CacheKeyWebhookFailsToday  = "statistics:webhook_events:failed_today"
	CacheExpiration            = 30 * time.Minute
)

// StatisticsData enthält die Kennzahlen für den internen Stats-Endpunkt
type StatisticsData struct {
	TotalUsers        int `json:"total_users"`
	PaidSubscriptions int `json:"paid_subscriptions"`
	EventsToday       int `json:"webhook_events_today"`
	FailedEventsToday int `json:"webhook_events_failed_today"`
}

// Variablen für die Cache-Aktualisierungslogik
var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute // Aktualisiere den Cache alle 5 Minuten
)

// ShouldUpdateCache prüft, ob der Cache aktualisiert werden sollte
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded aktualisiert den Cache, wenn nötig
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		log.Println("Aktualisiere Statistik-Cache...")
		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Fehler beim Aktualisieren des Statistik-Caches: %v", err)
		} else {
			log.Println("Statistik-Cache erfolgreich aktualisiert")
			lastCacheUpdate = time.Now()
		}
	}
}

// UpdateStatisticsCache zählt die Kennzahlen in der Datenbank und legt sie im Cache ab
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var paidSubs int64
	if err := db.Model(&models.Subscription{}).
		Where("status IN ?", []string{
			models.SubscriptionStatusActive,
			models.SubscriptionStatusTrialing,
			models.SubscriptionStatusPastDue,
		}).
		Count(&paidSubs).Error; err != nil {
		return err
	}

	startOfDay := time.Now().Truncate(24 * time.Hour)

	var eventsToday int64
	if err := db.Model(&models.WebhookEvent{}).
		Where("created_at >= ?", startOfDay).
		Count(&eventsToday).Error; err != nil {
		return err
	}

	var failedToday int64
	if err := db.Model(&models.WebhookEvent{}).
		Where("created_at >= ? AND status = ?", startOfDay, models.WebhookStatusFailed).
		Count(&failedToday).Error; err != nil {
		return err
	}

	if err := cache.Set(CacheKeyUsersTotal, totalUsers, CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeySubscriptionsPaid, paidSubs, CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyWebhookEventsToday, eventsToday, CacheExpiration); err != nil {
		return err
	}
	return cache.Set(CacheKeyWebhookFailsToday, failedToday, CacheExpiration)
}

// GetStatistics liefert die Kennzahlen aus dem Cache, mit Fallback auf die Datenbank
func GetStatistics() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalUsers:        cachedInt(CacheKeyUsersTotal),
		PaidSubscriptions: cachedInt(CacheKeySubscriptionsPaid),
		EventsToday:       cachedInt(CacheKeyWebhookEventsToday),
		FailedEventsToday: cachedInt(CacheKeyWebhookFailsToday),
	}
}

func cachedInt(key string) int {
	val, err := cache.Get(key)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}
