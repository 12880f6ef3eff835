package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubscriptionChargeEvent(t *testing.T) {
	payload := []byte(`{
		"app_subscription": {
			"admin_graphql_api_id": "gid://shopify/AppSubscription/123",
			"name": "Standard",
			"status": "active",
			"price": {"amount": 29.99}
		}
	}`)

	event, err := ParseSubscriptionChargeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/AppSubscription/123", event.SubscriptionID)
	assert.Equal(t, "ACTIVE", event.Status)
	assert.InDelta(t, 29.99, event.PriceAmount, 0.001)
}

func TestParseSubscriptionChargeEventFlatPayload(t *testing.T) {
	payload := []byte(`{"id": "456", "status": "declined", "price": {"amount": "79.99"}}`)

	event, err := ParseSubscriptionChargeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "456", event.SubscriptionID)
	assert.Equal(t, "DECLINED", event.Status)
	assert.InDelta(t, 79.99, event.PriceAmount, 0.001)
}

func TestParseSubscriptionChargeEventMalformed(t *testing.T) {
	for name, payload := range map[string]string{
		"invalid json":   `{"app_subscription":`,
		"missing id":     `{"app_subscription": {"status": "active"}}`,
		"missing status": `{"app_subscription": {"id": "1"}}`,
	} {
		if _, err := ParseSubscriptionChargeEvent([]byte(payload)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "wh-secret"
	payload := []byte(`{"app_subscription":{"id":"1","status":"active"}}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifyWebhookSignature(payload, sig, secret))
	assert.False(t, VerifyWebhookSignature(payload, sig, "other-secret"))
	assert.False(t, VerifyWebhookSignature([]byte("tampered"), sig, secret))
	assert.False(t, VerifyWebhookSignature(payload, "", secret))
	assert.False(t, VerifyWebhookSignature(payload, sig, ""))
	assert.False(t, VerifyWebhookSignature(payload, "not-base64!!", secret))
}
