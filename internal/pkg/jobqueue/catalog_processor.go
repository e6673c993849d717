package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SubFox/app/models"
)

// processCatalogSyncJob mirrors the provider price catalog into the local
// price_mappings table. Runs periodically off the webhook critical path so
// invoice handlers can resolve intervals without calling the provider.
func (q *Queue) processCatalogSyncJob(ctx context.Context, job *Job) error {
	if q.stripe == nil || q.prices == nil {
		return fmt.Errorf("catalog sync not configured")
	}

	payload, err := CatalogSyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid catalog sync payload: %w", err)
	}

	prices, err := q.stripe.ListPrices(ctx)
	if err != nil {
		return fmt.Errorf("price catalog fetch failed: %w", err)
	}

	activeIDs := make([]string, 0, len(prices))
	for _, p := range prices {
		if p.ID == "" {
			continue
		}
		interval := p.Interval
		switch interval {
		case models.BillingIntervalMonth, models.BillingIntervalYear:
		default:
			interval = models.BillingIntervalUnknown
		}

		mapping := &models.PriceMapping{
			PriceID:         p.ID,
			ProductID:       p.Product,
			Nickname:        p.Nickname,
			BillingInterval: interval,
			UnitAmount:      p.UnitAmount,
			Currency:        p.Currency,
			IsActive:        p.Active,
		}
		if err := q.prices.Upsert(mapping); err != nil {
			return fmt.Errorf("price mapping upsert for %s failed: %w", p.ID, err)
		}
		if p.Active {
			activeIDs = append(activeIDs, p.ID)
		}
	}

	if err := q.prices.DeactivateMissing(activeIDs); err != nil {
		return fmt.Errorf("price mapping cleanup failed: %w", err)
	}

	log.Infof("[JobQueue] Catalog sync (%s) refreshed %d prices", payload.RequestedBy, len(activeIDs))
	return nil
}
