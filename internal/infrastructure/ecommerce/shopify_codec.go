package ecommerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Lenient scalar types
// ---------------------------------------------------------------------------

// flexString accepts a JSON string or number. Upstream ids arrive as numbers
// in REST payloads and are stored as their decimal text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = flexString(num.String())
	return nil
}

// flexDecimal accepts money as a JSON string, number or null (zero)
type flexDecimal struct {
	decimal.Decimal
}

func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		d.Decimal = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(string(s))
	if err != nil {
		return fmt.Errorf("invalid amount %q", string(s))
	}
	d.Decimal = v
	return nil
}

// flexInt accepts an integer as a JSON string, number or null (zero)
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*i = 0
		return nil
	}
	v, err := strconv.Atoi(string(s))
	if err != nil {
		return fmt.Errorf("invalid integer %q", string(s))
	}
	*i = flexInt(v)
	return nil
}

// ---------------------------------------------------------------------------
// Wire records
// ---------------------------------------------------------------------------

type customerRecord struct {
	ID          flexString  `json:"id" validate:"required,max=64"`
	Email       string      `json:"email" validate:"max=320"`
	FirstName   string      `json:"first_name" validate:"max=200"`
	LastName    string      `json:"last_name" validate:"max=200"`
	TotalSpent  flexDecimal `json:"total_spent"`
	OrdersCount flexInt     `json:"orders_count" validate:"gte=0"`
}

type variantRecord struct {
	Price flexDecimal `json:"price"`
}

type productRecord struct {
	ID       flexString      `json:"id" validate:"required,max=64"`
	Title    string          `json:"title" validate:"max=500"`
	Variants []variantRecord `json:"variants"`
}

type lineItemRecord struct {
	ID        flexString  `json:"id" validate:"required,max=64"`
	ProductID flexString  `json:"product_id" validate:"max=64"`
	Title     string      `json:"title" validate:"max=500"`
	Quantity  flexInt     `json:"quantity" validate:"gte=0"`
	Price     flexDecimal `json:"price"`
}

type orderRecord struct {
	ID          flexString       `json:"id" validate:"required,max=64"`
	OrderNumber flexString       `json:"order_number" validate:"max=64"`
	Name        string           `json:"name" validate:"max=65"`
	TotalPrice  flexDecimal      `json:"total_price"`
	CreatedAt   string           `json:"created_at"`
	Customer    *customerRecord  `json:"customer" validate:"-"`
	LineItems   []lineItemRecord `json:"line_items" validate:"dive"`
}

type cartRecord struct {
	ID                   flexString      `json:"id"`
	Token                string          `json:"token"`
	AbandonedCheckoutURL string          `json:"abandoned_checkout_url"`
	Customer             *customerRecord `json:"customer" validate:"-"`
}

// ---------------------------------------------------------------------------
// Codec
// ---------------------------------------------------------------------------

// Codec decodes Admin API JSON into normalized integration records.
// It is shared by the batch sync and webhook paths.
type Codec struct {
	validate *validator.Validate
}

// NewCodec creates a codec with its own validator instance
func NewCodec() *Codec {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Codec{validate: v}
}

func (c *Codec) decode(raw json.RawMessage, kind string, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", integration.ErrInvalidRecord, kind, err)
	}
	if err := c.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", integration.ErrInvalidRecord, kind, err)
	}
	return nil
}

// DecodeCustomer decodes a customer listing entry or webhook body
func (c *Codec) DecodeCustomer(raw json.RawMessage) (*integration.ExternalCustomer, error) {
	var rec customerRecord
	if err := c.decode(raw, "customer", &rec); err != nil {
		return nil, err
	}
	return rec.toExternal(), nil
}

// DecodeProduct decodes a product; its price is the first variant's price
func (c *Codec) DecodeProduct(raw json.RawMessage) (*integration.ExternalProduct, error) {
	var rec productRecord
	if err := c.decode(raw, "product", &rec); err != nil {
		return nil, err
	}
	price := decimal.Zero
	if len(rec.Variants) > 0 {
		price = rec.Variants[0].Price.Decimal
	}
	return &integration.ExternalProduct{
		ID:    string(rec.ID),
		Title: rec.Title,
		Price: price,
	}, nil
}

// DecodeOrder decodes an order with its embedded customer and line items.
// An embedded customer without an id is dropped.
func (c *Codec) DecodeOrder(raw json.RawMessage) (*integration.ExternalOrder, error) {
	var rec orderRecord
	if err := c.decode(raw, "order", &rec); err != nil {
		return nil, err
	}

	number := string(rec.OrderNumber)
	if number == "" {
		number = strings.TrimPrefix(rec.Name, "#")
	}

	var createdAt time.Time
	if rec.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: order: invalid created_at %q", integration.ErrInvalidRecord, rec.CreatedAt)
		}
		createdAt = t.UTC()
	}

	order := &integration.ExternalOrder{
		ID:          string(rec.ID),
		OrderNumber: number,
		TotalPrice:  rec.TotalPrice.Decimal,
		CreatedAt:   createdAt,
		LineItems:   make([]integration.ExternalLineItem, 0, len(rec.LineItems)),
	}
	if rec.Customer != nil && rec.Customer.ID != "" {
		if err := c.validate.Struct(rec.Customer); err != nil {
			return nil, fmt.Errorf("%w: order customer: %v", integration.ErrInvalidRecord, err)
		}
		order.Customer = rec.Customer.toExternal()
	}
	for _, li := range rec.LineItems {
		order.LineItems = append(order.LineItems, integration.ExternalLineItem{
			ID:        string(li.ID),
			ProductID: string(li.ProductID),
			Title:     li.Title,
			Quantity:  int(li.Quantity),
			Price:     li.Price.Decimal,
		})
	}
	return order, nil
}

// DecodeCart decodes a carts/update body, keeping the raw payload
func (c *Codec) DecodeCart(raw json.RawMessage) (*integration.ExternalCart, error) {
	var rec cartRecord
	if err := c.decode(raw, "cart", &rec); err != nil {
		return nil, err
	}
	id := string(rec.ID)
	if id == "" {
		id = rec.Token
	}
	cart := &integration.ExternalCart{
		ID:                   id,
		AbandonedCheckoutURL: strings.TrimSpace(rec.AbandonedCheckoutURL),
		Raw:                  append(json.RawMessage(nil), raw...),
	}
	if rec.Customer != nil && rec.Customer.ID != "" {
		if err := c.validate.Struct(rec.Customer); err != nil {
			return nil, fmt.Errorf("%w: cart customer: %v", integration.ErrInvalidRecord, err)
		}
		cart.Customer = rec.Customer.toExternal()
	}
	return cart, nil
}

func (r *customerRecord) toExternal() *integration.ExternalCustomer {
	return &integration.ExternalCustomer{
		ID:          string(r.ID),
		Email:       strings.TrimSpace(r.Email),
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		TotalSpent:  r.TotalSpent.Decimal,
		OrdersCount: int(r.OrdersCount),
	}
}

var _ integration.RecordDecoder = (*Codec)(nil)
