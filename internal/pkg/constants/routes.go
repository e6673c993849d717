package constants

// Static route constants
const (
	WebhookRoute = "/webhook"
	HealthRoute  = "/healthz"
	APIRoute     = "/api"
	// API version prefix without leading slash for URL construction
	APIV1Path = "v1"
)
