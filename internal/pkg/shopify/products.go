package shopify

import (
	"context"
	"errors"
	"strconv"
)

// Variant is one purchasable sub-unit of a product with its own price.
type Variant struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
}

// Product is a listed product with its variants.
type Product struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	Variants []Variant `json:"variants"`
}

// PageArgs carries opaque cursor pagination arguments. Either First/After
// (forward) or Last/Before (backward) may be set, not both.
type PageArgs struct {
	First  int
	After  string
	Last   int
	Before string
	Query  string
}

// ProductPage is one page of the shop's product list.
type ProductPage struct {
	Products        []Product `json:"products"`
	HasNextPage     bool      `json:"has_next_page"`
	HasPreviousPage bool      `json:"has_previous_page"`
	StartCursor     string    `json:"start_cursor"`
	EndCursor       string    `json:"end_cursor"`
}

const productsQuery = `
query Products($first: Int, $after: String, $last: Int, $before: String, $query: String) {
  products(first: $first, after: $after, last: $last, before: $before, query: $query) {
    pageInfo { hasNextPage hasPreviousPage startCursor endCursor }
    edges {
      node {
        id
        title
        status
        variants(first: 100) {
          edges { node { id title sku price } }
        }
      }
    }
  }
}`

// ListProducts fetches one page of products with their variants.
func (c *Client) ListProducts(ctx context.Context, args PageArgs) (*ProductPage, error) {
	if args.First > 0 && args.Last > 0 {
		return nil, errors.New("first/after and last/before are mutually exclusive")
	}
	if args.First <= 0 && args.Last <= 0 {
		args.First = 25
	}

	variables := map[string]interface{}{}
	if args.First > 0 {
		variables["first"] = args.First
		if args.After != "" {
			variables["after"] = args.After
		}
	} else {
		variables["last"] = args.Last
		if args.Before != "" {
			variables["before"] = args.Before
		}
	}
	if args.Query != "" {
		variables["query"] = args.Query
	}

	var raw struct {
		Products struct {
			PageInfo struct {
				HasNextPage     bool   `json:"hasNextPage"`
				HasPreviousPage bool   `json:"hasPreviousPage"`
				StartCursor     string `json:"startCursor"`
				EndCursor       string `json:"endCursor"`
			} `json:"pageInfo"`
			Edges []struct {
				Node struct {
					ID       string `json:"id"`
					Title    string `json:"title"`
					Status   string `json:"status"`
					Variants struct {
						Edges []struct {
							Node struct {
								ID    string `json:"id"`
								Title string `json:"title"`
								SKU   string `json:"sku"`
								Price string `json:"price"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"variants"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}

	if err := c.execute(ctx, productsQuery, variables, &raw); err != nil {
		return nil, err
	}

	page := &ProductPage{
		Products:        make([]Product, 0, len(raw.Products.Edges)),
		HasNextPage:     raw.Products.PageInfo.HasNextPage,
		HasPreviousPage: raw.Products.PageInfo.HasPreviousPage,
		StartCursor:     raw.Products.PageInfo.StartCursor,
		EndCursor:       raw.Products.PageInfo.EndCursor,
	}
	for _, edge := range raw.Products.Edges {
		p := Product{
			ID:       edge.Node.ID,
			Title:    edge.Node.Title,
			Status:   edge.Node.Status,
			Variants: make([]Variant, 0, len(edge.Node.Variants.Edges)),
		}
		for _, ve := range edge.Node.Variants.Edges {
			price, err := strconv.ParseFloat(ve.Node.Price, 64)
			if err != nil {
				// The platform returns prices as decimal strings; skip
				// variants we cannot interpret rather than failing the page.
				continue
			}
			p.Variants = append(p.Variants, Variant{
				ID:    ve.Node.ID,
				Title: ve.Node.Title,
				SKU:   ve.Node.SKU,
				Price: price,
			})
		}
		page.Products = append(page.Products, p)
	}
	return page, nil
}

const variantsBulkUpdateMutation = `
mutation VariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    product { id }
    userErrors { field message }
  }
}`

// VariantPriceInput is one variant price change inside a bulk update.
type VariantPriceInput struct {
	ID    string
	Price float64
}

// UpdateVariantPrices submits all price changes for one product as a single
// bulk mutation and returns the field-scoped user errors. A nil error with
// a non-empty slice means the request reached the platform but some
// variants were rejected.
func (c *Client) UpdateVariantPrices(ctx context.Context, productID string, variants []VariantPriceInput) ([]UserError, error) {
	if productID == "" {
		return nil, errors.New("product id is required")
	}
	if len(variants) == 0 {
		return nil, errors.New("at least one variant is required")
	}

	inputs := make([]map[string]interface{}, 0, len(variants))
	for _, v := range variants {
		inputs = append(inputs, map[string]interface{}{
			"id":    v.ID,
			"price": strconv.FormatFloat(v.Price, 'f', 2, 64),
		})
	}

	var raw struct {
		ProductVariantsBulkUpdate struct {
			Product struct {
				ID string `json:"id"`
			} `json:"product"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	err := c.execute(ctx, variantsBulkUpdateMutation, map[string]interface{}{
		"productId": productID,
		"variants":  inputs,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return raw.ProductVariantsBulkUpdate.UserErrors, nil
}
