package notify

import (
	"context"
	"errors"

	"github.com/semmidev/dailybackup/internal/domain"
)

// Multi sends every alert through each of its channels. A failing channel
// does not stop the others.
type Multi []domain.Alerter

func (m Multi) SendAlert(ctx context.Context, a domain.Alert) error {
	var errs []error
	for _, alerter := range m {
		if err := alerter.SendAlert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return domain.NotificationError("send alert", errors.Join(errs...))
	}
	return nil
}
