package notification

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SubFox/internal/pkg/mail"
)

// Dispatcher sends the transactional notices the subscription state machine
// triggers. A delivery failure is logged and swallowed: the billing-state
// mutation is the source of truth and is never rolled back over an email.
type Dispatcher interface {
	NotifyCancellation(email, username string) error
	NotifyPaymentFailure(email, username string) error
}

// SMTPDispatcher delivers notices over the configured SMTP relay.
type SMTPDispatcher struct{}

// NewSMTPDispatcher creates the production dispatcher.
func NewSMTPDispatcher() *SMTPDispatcher {
	return &SMTPDispatcher{}
}

func (d *SMTPDispatcher) NotifyCancellation(email, username string) error {
	subject := "Your subscription has been canceled"
	body := fmt.Sprintf(
		"Hi %s,\n\nyour subscription has been canceled. You keep access to paid features until the end of the current billing period.\n\nIf this was not you, please contact support.\n",
		username,
	)
	if err := mail.SendMail(email, subject, body); err != nil {
		log.Errorf("[Notification] cancellation notice to %s failed: %v", email, err)
		return err
	}
	return nil
}

func (d *SMTPDispatcher) NotifyPaymentFailure(email, username string) error {
	subject := "Payment failed for your subscription"
	body := fmt.Sprintf(
		"Hi %s,\n\nwe could not collect the latest payment for your subscription. Please update your payment method; we will retry automatically.\n",
		username,
	)
	if err := mail.SendMail(email, subject, body); err != nil {
		log.Errorf("[Notification] payment failure notice to %s failed: %v", email, err)
		return err
	}
	return nil
}
