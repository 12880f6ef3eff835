package billing

import (
	"encoding/json"
	"errors"
	"strings"
)

// SubscriptionChargeEvent is the parsed payload of an app-subscription
// update webhook: the charge's platform identifier, its lifecycle status
// and the recurring price it was approved at.
type SubscriptionChargeEvent struct {
	SubscriptionID string
	Status         string
	PriceAmount    float64
}

// ParseSubscriptionChargeEvent extracts the charge from a webhook body.
// Both the nested app_subscription wrapper and a flat payload are
// accepted; price.amount arrives as a string in some payload variants and
// a number in others, so it is read as a json.Number. A missing price
// parses as zero.
func ParseSubscriptionChargeEvent(payload []byte) (*SubscriptionChargeEvent, error) {
	type rawCharge struct {
		ID                string `json:"id"`
		AdminGraphqlAPIID string `json:"admin_graphql_api_id"`
		Name              string `json:"name"`
		Status            string `json:"status"`
		Price             struct {
			Amount json.Number `json:"amount"`
		} `json:"price"`
	}
	type rawPayload struct {
		AppSubscription *rawCharge `json:"app_subscription"`
		rawCharge
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	charge := raw.rawCharge
	if raw.AppSubscription != nil {
		charge = *raw.AppSubscription
	}

	id := strings.TrimSpace(charge.AdminGraphqlAPIID)
	if id == "" {
		id = strings.TrimSpace(charge.ID)
	}
	if id == "" {
		return nil, errors.New("webhook payload missing subscription id")
	}
	status := strings.ToUpper(strings.TrimSpace(charge.Status))
	if status == "" {
		return nil, errors.New("webhook payload missing status")
	}

	amount := 0.0
	if v, err := charge.Price.Amount.Float64(); err == nil {
		amount = v
	}

	return &SubscriptionChargeEvent{
		SubscriptionID: id,
		Status:         status,
		PriceAmount:    amount,
	}, nil
}
