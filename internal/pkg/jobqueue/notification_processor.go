package jobqueue

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"
)

// processSendNotificationJob delivers one queued transactional notice. The
// dispatcher owns retry-worthiness: a returned error makes the queue retry
// the job, which is safe because notices are not stateful.
func (q *Queue) processSendNotificationJob(job *Job) error {
	payload, err := NotificationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	if payload.Email == "" {
		return fmt.Errorf("notification job %s has no recipient", job.ID)
	}

	switch payload.Kind {
	case NotificationKindCancellation:
		return q.notifier.NotifyCancellation(payload.Email, payload.Username)
	case NotificationKindPaymentFailure:
		return q.notifier.NotifyPaymentFailure(payload.Email, payload.Username)
	default:
		// Unknown kinds are dropped, not retried; retrying cannot fix them.
		log.Warnf("[JobQueue] Dropping notification job %s with unknown kind %q", job.ID, payload.Kind)
		return nil
	}
}
