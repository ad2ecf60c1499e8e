package auth

import (
	"context"

	"github.com/crewbase/crewbase/pkg/observability"
)

// OTPDeliverer hands a freshly generated code to an out-of-band channel.
// Callers fire and forget; delivery failure never rolls back issuance.
type OTPDeliverer interface {
	DeliverOTP(ctx context.Context, email, code string) error
}

// LogDeliverer writes codes to the log instead of sending them. Debug and
// test environments only.
type LogDeliverer struct {
	logger *observability.Logger
}

// NewLogDeliverer creates a LogDeliverer.
func NewLogDeliverer(logger *observability.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

// DeliverOTP logs the code.
func (d *LogDeliverer) DeliverOTP(_ context.Context, email, code string) error {
	d.logger.WithFields(map[string]interface{}{
		"email": email,
		"otp":   code,
	}).Info("otp delivery (log channel)")
	return nil
}
