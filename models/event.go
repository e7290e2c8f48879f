package models

import (
	"time"
)

const (
	EventProductView = "product_view"
	EventPurchase    = "purchase"
)

// ProductEvent is one storefront interaction with a product. Purchases carry
// amount, quantity and shipping cost; views leave them zero.
type ProductEvent struct {
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType" binding:"required,oneof=product_view purchase"`
	ProductID   string    `json:"productId" binding:"required"`
	ProductName string    `json:"productName"`
	UserID      string    `json:"userId"`
	SessionID   string    `json:"sessionId"`
	Timestamp   time.Time `json:"timestamp" binding:"required"`
	Amount      float64   `json:"amount" binding:"gte=0"`
	Quantity    uint32    `json:"quantity"`
	ShipCod     float64   `json:"shipCod" binding:"gte=0"`
	IPAddress   string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
}

// Notification is the user-visible message attached to a degraded response.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func ErrorNotification(message string) *Notification {
	return &Notification{Type: "error", Message: message}
}
