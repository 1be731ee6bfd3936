package booking

import (
	"context"
	"log"
	"time"

	"github.com/slotboard/booking-service/internal/notify"
)

// notifyAsync hands a message to the notification sink without blocking
// the caller. Failures are logged and swallowed: the state transition
// that triggered the notification has already committed.
func notifyAsync(n notify.Notifier, recipient, message string) {
	if n == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := n.Send(ctx, recipient, message); err != nil {
			log.Printf("notification to %s failed: %v", recipient, err)
			return
		}
		metricNotificationsSent.Inc()
	}()
}
