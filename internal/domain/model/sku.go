package model

import (
	"sort"

	"telegram-credit-miniapp/internal/domain"
)

// SKU is a purchasable credit pack priced in Stars.
type SKU struct {
	ID      string
	XTR     int
	Credits int
}

var baseSKUs = []SKU{
	{ID: "pack12", XTR: 50, Credits: 12},
	{ID: "pack30", XTR: 100, Credits: 30},
	{ID: "pack60", XTR: 180, Credits: 60},
	{ID: "pack88", XTR: 250, Credits: 88},
}

// testSKUs are only sold when test mode is enabled.
var testSKUs = []SKU{
	{ID: "test_credits_1", XTR: 1, Credits: 10},
	{ID: "test_credits_5", XTR: 5, Credits: 50},
	{ID: "test_credits_10", XTR: 10, Credits: 100},
}

// Catalog is the immutable SKU table for a process.
type Catalog struct {
	items    map[string]SKU
	testMode bool
}

func NewCatalog(testMode bool) *Catalog {
	c := &Catalog{items: make(map[string]SKU), testMode: testMode}
	for _, s := range baseSKUs {
		c.items[s.ID] = s
	}
	if testMode {
		for _, s := range testSKUs {
			c.items[s.ID] = s
		}
	}
	return c
}

func (c *Catalog) TestMode() bool { return c.testMode }

// Lookup returns the SKU or ErrUnknownSKU. A zero or negative price is ErrInvalidPrice.
func (c *Catalog) Lookup(id string) (SKU, error) {
	s, ok := c.items[id]
	if !ok {
		return SKU{}, domain.ErrUnknownSKU
	}
	if s.XTR <= 0 || s.Credits <= 0 {
		return SKU{}, domain.ErrInvalidPrice
	}
	return s, nil
}

// All lists the catalog ordered by price.
func (c *Catalog) All() []SKU {
	out := make([]SKU, 0, len(c.items))
	for _, s := range c.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XTR == out[j].XTR {
			return out[i].ID < out[j].ID
		}
		return out[i].XTR < out[j].XTR
	})
	return out
}
