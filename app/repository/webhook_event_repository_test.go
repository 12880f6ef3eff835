package repository

import (
	"testing"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/internal/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookEventRepositoryDeduplicatesDeliveries(t *testing.T) {
	setupTestDatabase(t)
	repo := NewFactory(database.GetDB()).GetWebhookEventRepository()

	event := &models.WebhookEvent{
		Topic:           "app_subscriptions/update",
		ExternalEventID: "delivery-1",
		Shop:            "webhook-shop.example.com",
		PayloadJSON:     `{"app_subscription":{"status":"ACTIVE"}}`,
		SignatureValid:  true,
	}
	created, stored, err := repo.CreateIfNotExists(event)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, stored)
	assert.NotZero(t, stored.ID)

	replay := &models.WebhookEvent{
		Topic:           "app_subscriptions/update",
		ExternalEventID: "delivery-1",
		Shop:            "webhook-shop.example.com",
		PayloadJSON:     `{"app_subscription":{"status":"ACTIVE"}}`,
		SignatureValid:  true,
	}
	createdAgain, existing, err := repo.CreateIfNotExists(replay)
	require.NoError(t, err)
	assert.False(t, createdAgain, "a replayed delivery must not create a second row")
	require.NotNil(t, existing)
	assert.Equal(t, stored.ID, existing.ID)
}

func TestWebhookEventRepositoryMarkProcessed(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewFactory(db).GetWebhookEventRepository()

	created, stored, err := repo.CreateIfNotExists(&models.WebhookEvent{
		Topic:           "app_subscriptions/update",
		ExternalEventID: "delivery-2",
		Shop:            "webhook-shop.example.com",
		PayloadJSON:     `{"app_subscription":{"status":"CANCELLED"}}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, repo.MarkProcessed(stored.ID, ""))

	var after models.WebhookEvent
	require.NoError(t, db.First(&after, stored.ID).Error)
	require.NotNil(t, after.ProcessedAt)
	assert.Empty(t, after.ProcessingError)

	require.NoError(t, repo.MarkProcessed(stored.ID, "plan lookup failed"))
	require.NoError(t, db.First(&after, stored.ID).Error)
	assert.Equal(t, "plan lookup failed", after.ProcessingError)
}
