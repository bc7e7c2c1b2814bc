package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeBillCreated EventType = "bill.created"
	EventTypeBillUpdated EventType = "bill.updated"
	EventTypeBillDeleted EventType = "bill.deleted"

	// AggregateBill — тип агрегата в outbox.
	AggregateBill = "bill"
)

// Topics для Kafka
const (
	TopicBillEvents      = "shop.bill.events"
	TopicDeadLetterQueue = "shop.bill.dlq" // Dead Letter Queue для failed messages
)

// BillEventItem — строка счёта в событии.
type BillEventItem struct {
	ProductID      string `json:"product_id"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	TotalMinor     int64  `json:"total_minor"`
}

// BillEvent — полезная нагрузка событий жизненного цикла счёта.
type BillEvent struct {
	EventType            EventType       `json:"event_type"`
	BillID               string          `json:"bill_id"`
	Number               string          `json:"number"`
	CustomerID           string          `json:"customer_id"`
	StaffID              string          `json:"staff_id"`
	Version              int64           `json:"version"`
	OriginalMinor        int64           `json:"original_minor"`
	DiscountMinor        int64           `json:"discount_minor"`
	DiscountedTotalMinor int64           `json:"discounted_total_minor"`
	Items                []BillEventItem `json:"items,omitempty"`
	Timestamp            time.Time       `json:"timestamp"`
}

// NewBillEvent создает событие по состоянию счёта.
// Для bill.deleted строки не передаются.
func NewBillEvent(eventType EventType, bill domain.Bill) *BillEvent {
	event := &BillEvent{
		EventType:            eventType,
		BillID:               bill.ID,
		Number:               bill.Number(),
		CustomerID:           bill.CustomerID,
		StaffID:              bill.StaffID,
		Version:              bill.Version,
		OriginalMinor:        bill.OriginalMinor,
		DiscountMinor:        bill.DiscountMinor,
		DiscountedTotalMinor: bill.DiscountedTotalMinor,
		Timestamp:            time.Now().UTC(),
	}
	if eventType == EventTypeBillDeleted {
		return event
	}

	event.Items = make([]BillEventItem, 0, len(bill.Details))
	for _, d := range bill.Details {
		event.Items = append(event.Items, BillEventItem{
			ProductID:      d.ProductID,
			Quantity:       d.Quantity,
			UnitPriceMinor: d.UnitPriceMinor,
			TotalMinor:     d.TotalMinor,
		})
	}
	return event
}
