package shopify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SubscriptionParams describes the recurring app subscription to create.
type SubscriptionParams struct {
	Name      string
	Price     float64
	Currency  string
	Interval  string
	TrialDays int
	ReturnURL string
	Test      bool
}

// PendingSubscription is the platform's reply to a subscription-create
// request. The merchant must visit ConfirmationURL to approve the charge;
// until then the subscription stays pending.
type PendingSubscription struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	ConfirmationURL string `json:"confirmation_url"`
}

// ActiveSubscription is one currently active app subscription as reported
// by the platform.
type ActiveSubscription struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Status           string     `json:"status"`
	Price            float64    `json:"price"`
	Currency         string     `json:"currency"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

const subscriptionCreateMutation = `
mutation SubscriptionCreate($name: String!, $returnUrl: URL!, $trialDays: Int, $test: Boolean, $lineItems: [AppSubscriptionLineItemInput!]!) {
  appSubscriptionCreate(name: $name, returnUrl: $returnUrl, trialDays: $trialDays, test: $test, lineItems: $lineItems) {
    appSubscription { id status }
    confirmationUrl
    userErrors { field message }
  }
}`

// CreateSubscription issues a subscription-create mutation. The returned
// subscription is pending until approved out-of-band.
func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionParams) (*PendingSubscription, error) {
	if params.Name == "" {
		return nil, errors.New("subscription name is required")
	}
	if params.Price <= 0 {
		return nil, errors.New("subscription price must be positive")
	}
	if params.ReturnURL == "" {
		return nil, errors.New("return url is required")
	}

	lineItems := []map[string]interface{}{
		{
			"plan": map[string]interface{}{
				"appRecurringPricingDetails": map[string]interface{}{
					"price": map[string]interface{}{
						"amount":       strconv.FormatFloat(params.Price, 'f', 2, 64),
						"currencyCode": params.Currency,
					},
					"interval": params.Interval,
				},
			},
		},
	}
	variables := map[string]interface{}{
		"name":      params.Name,
		"returnUrl": params.ReturnURL,
		"test":      params.Test,
		"lineItems": lineItems,
	}
	if params.TrialDays > 0 {
		variables["trialDays"] = params.TrialDays
	}

	var raw struct {
		AppSubscriptionCreate struct {
			AppSubscription struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"appSubscription"`
			ConfirmationURL string      `json:"confirmationUrl"`
			UserErrors      []UserError `json:"userErrors"`
		} `json:"appSubscriptionCreate"`
	}
	if err := c.execute(ctx, subscriptionCreateMutation, variables, &raw); err != nil {
		return nil, err
	}
	if len(raw.AppSubscriptionCreate.UserErrors) > 0 {
		return nil, fmt.Errorf("subscription create rejected: %s", joinUserErrors(raw.AppSubscriptionCreate.UserErrors))
	}
	if raw.AppSubscriptionCreate.AppSubscription.ID == "" {
		return nil, errors.New("subscription create returned no subscription id")
	}
	return &PendingSubscription{
		ID:              raw.AppSubscriptionCreate.AppSubscription.ID,
		Status:          raw.AppSubscriptionCreate.AppSubscription.Status,
		ConfirmationURL: raw.AppSubscriptionCreate.ConfirmationURL,
	}, nil
}

const subscriptionCancelMutation = `
mutation SubscriptionCancel($id: ID!) {
  appSubscriptionCancel(id: $id) {
    appSubscription { id status }
    userErrors { field message }
  }
}`

// CancelSubscription cancels the given platform subscription.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return errors.New("subscription id is required")
	}

	var raw struct {
		AppSubscriptionCancel struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"appSubscriptionCancel"`
	}
	if err := c.execute(ctx, subscriptionCancelMutation, map[string]interface{}{"id": subscriptionID}, &raw); err != nil {
		return err
	}
	if len(raw.AppSubscriptionCancel.UserErrors) > 0 {
		return fmt.Errorf("subscription cancel rejected: %s", joinUserErrors(raw.AppSubscriptionCancel.UserErrors))
	}
	return nil
}

const activeSubscriptionsQuery = `
query ActiveSubscriptions {
  currentAppInstallation {
    activeSubscriptions {
      id
      name
      status
      currentPeriodEnd
      lineItems {
        plan {
          pricingDetails {
            ... on AppRecurringPricing {
              price { amount currencyCode }
            }
          }
        }
      }
    }
  }
}`

// ActiveSubscriptions lists the app subscriptions currently active for
// this installation.
func (c *Client) ActiveSubscriptions(ctx context.Context) ([]ActiveSubscription, error) {
	var raw struct {
		CurrentAppInstallation struct {
			ActiveSubscriptions []struct {
				ID               string `json:"id"`
				Name             string `json:"name"`
				Status           string `json:"status"`
				CurrentPeriodEnd string `json:"currentPeriodEnd"`
				LineItems        []struct {
					Plan struct {
						PricingDetails struct {
							Price struct {
								Amount       string `json:"amount"`
								CurrencyCode string `json:"currencyCode"`
							} `json:"price"`
						} `json:"pricingDetails"`
					} `json:"plan"`
				} `json:"lineItems"`
			} `json:"activeSubscriptions"`
		} `json:"currentAppInstallation"`
	}
	if err := c.execute(ctx, activeSubscriptionsQuery, nil, &raw); err != nil {
		return nil, err
	}

	subs := make([]ActiveSubscription, 0, len(raw.CurrentAppInstallation.ActiveSubscriptions))
	for _, s := range raw.CurrentAppInstallation.ActiveSubscriptions {
		out := ActiveSubscription{
			ID:     s.ID,
			Name:   s.Name,
			Status: s.Status,
		}
		if len(s.LineItems) > 0 {
			price := s.LineItems[0].Plan.PricingDetails.Price
			if amount, err := strconv.ParseFloat(price.Amount, 64); err == nil {
				out.Price = amount
			}
			out.Currency = price.CurrencyCode
		}
		if s.CurrentPeriodEnd != "" {
			if t, err := time.Parse(time.RFC3339, s.CurrentPeriodEnd); err == nil {
				out.CurrentPeriodEnd = &t
			}
		}
		subs = append(subs, out)
	}
	return subs, nil
}
