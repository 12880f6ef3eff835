package constants

// Static route constants
const (
	APIRoute = "/api"

	// BillingConfirmRoute is where the commerce platform redirects the
	// merchant after approving a subscription charge.
	BillingConfirmRoute = "/api/v1/billing/confirm"

	// SubscriptionWebhookRoute receives app subscription update deliveries.
	SubscriptionWebhookRoute = "/webhooks/app_subscriptions/update"
)
