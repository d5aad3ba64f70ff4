package spec

import "time"

// Limits imposed by the Twitter Direct Message API
const (
	MaxCTAs           int = 3
	MaxCTALabelLength int = 36
)

// Service defaults
const (
	WebhookBodyLimit  int64         = 65536
	MessageBodyLimit  int64         = 65536
	ProcessedEventTTL time.Duration = time.Hour * 72

	DefaultBrandedCTALabel string = "Powered by PlzDM.me"
	DefaultBrandedCTAURL   string = "https://plzdm.me?ref=powered-by"
)
