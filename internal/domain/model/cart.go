package model

import (
	"sort"
	"time"

	"datahub-storefront/internal/domain"
)

// Product is a catalog entry. Prices are in minor currency units.
type Product struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Category    string `json:"category,omitempty" yaml:"category"`
	PriceMinor  int64  `json:"price_minor" yaml:"price_minor"`
	Currency    string `json:"currency" yaml:"currency"`
}

// CartItem is one line in a cart.
type CartItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

// LineTotal is quantity × unit price.
func (i CartItem) LineTotal() int64 { return int64(i.Quantity) * i.UnitPriceMinor }

// Cart is the session's shopping cart.
type Cart struct {
	SessionID string               `json:"session_id"`
	Items     map[string]*CartItem `json:"items"`
	Currency  string               `json:"currency"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func NewCart(sessionID, currency string) *Cart {
	return &Cart{
		SessionID: sessionID,
		Items:     make(map[string]*CartItem),
		Currency:  currency,
		UpdatedAt: time.Now(),
	}
}

func (c *Cart) IsEmpty() bool { return c == nil || len(c.Items) == 0 }

// Total is the cart subtotal in minor units.
func (c *Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.LineTotal()
	}
	return total
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Lines returns the items ordered by product ID.
func (c *Cart) Lines() []CartItem {
	out := make([]CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// Add puts qty units of p in the cart, merging with an existing line.
func (c *Cart) Add(p *Product, qty int) error {
	if p == nil {
		return domain.ErrProductNotFound
	}
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	if c.Items == nil {
		c.Items = make(map[string]*CartItem)
	}
	if it, ok := c.Items[p.ID]; ok {
		it.Quantity += qty
		it.UnitPriceMinor = p.PriceMinor
	} else {
		c.Items[p.ID] = &CartItem{ProductID: p.ID, Name: p.Name, Quantity: qty, UnitPriceMinor: p.PriceMinor}
	}
	c.UpdatedAt = time.Now()
	return nil
}

// SetQuantity changes a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(productID string, qty int) error {
	it, ok := c.Items[productID]
	if !ok {
		return domain.ErrItemNotInCart
	}
	if qty <= 0 {
		delete(c.Items, productID)
	} else {
		it.Quantity = qty
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (c *Cart) Remove(productID string) error {
	if _, ok := c.Items[productID]; !ok {
		return domain.ErrItemNotInCart
	}
	delete(c.Items, productID)
	c.UpdatedAt = time.Now()
	return nil
}

func (c *Cart) Clear() {
	c.Items = make(map[string]*CartItem)
	c.UpdatedAt = time.Now()
}
