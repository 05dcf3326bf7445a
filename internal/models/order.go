package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderPreparing = "preparing"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
	PaymentRefunded = "refunded"
)

var PaymentMethods = []string{"credit_card", "debit_card", "pix", "boleto", "wallet"}

// OrderItem is a frozen snapshot of the product at order time.
type OrderItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Seller   primitive.ObjectID `bson:"seller" json:"seller"`
	Title    string             `bson:"title" json:"title"`
	Image    string             `bson:"image,omitempty" json:"image,omitempty"`
	Price    float64            `bson:"price" json:"price"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Subtotal float64            `bson:"subtotal" json:"subtotal"`
}

type ShippingAddress struct {
	Street       string `bson:"street" json:"street" binding:"required"`
	Number       string `bson:"number" json:"number" binding:"required"`
	Complement   string `bson:"complement,omitempty" json:"complement,omitempty"`
	Neighborhood string `bson:"neighborhood" json:"neighborhood" binding:"required"`
	City         string `bson:"city" json:"city" binding:"required"`
	State        string `bson:"state" json:"state" binding:"required"`
	ZipCode      string `bson:"zipCode" json:"zipCode" binding:"required"`
}

type Tracking struct {
	Code    string `bson:"code,omitempty" json:"code,omitempty"`
	URL     string `bson:"url,omitempty" json:"url,omitempty"`
	Carrier string `bson:"carrier,omitempty" json:"carrier,omitempty"`
	Status  string `bson:"status,omitempty" json:"status,omitempty"`
}

type StatusEntry struct {
	Status    string    `bson:"status" json:"status"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Note      string    `bson:"note,omitempty" json:"note,omitempty"`
}

// Order defines the persisted order document. Totals are computed once at
// creation and never recomputed.
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber     string             `bson:"orderNumber" json:"orderNumber"`
	Buyer           primitive.ObjectID `bson:"buyer" json:"buyer"`
	Items           []OrderItem        `bson:"items" json:"items"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   string             `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus     string             `bson:"orderStatus" json:"orderStatus"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	ShippingCost    float64            `bson:"shippingCost" json:"shippingCost"`
	Discount        float64            `bson:"discount" json:"discount"`
	Total           float64            `bson:"total" json:"total"`
	Tracking        *Tracking          `bson:"tracking,omitempty" json:"tracking,omitempty"`
	StatusHistory   []StatusEntry      `bson:"statusHistory" json:"statusHistory"`
	CancelReason    string             `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasSeller reports whether sellerID owns at least one line item.
func (o Order) HasSeller(sellerID primitive.ObjectID) bool {
	for _, item := range o.Items {
		if item.Seller == sellerID {
			return true
		}
	}
	return false
}

func ValidPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

func ValidOrderStatus(status string) bool {
	switch status {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}
