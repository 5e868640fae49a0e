package domain

import "time"

// Order is a purchase order being assembled by a chat user.
type Order struct {
	ID        int64     `gorm:"primaryKey" json:"id,string"`
	OwnerID   string    `gorm:"size:128;not null;index" json:"owner_id"`
	Name      string    `gorm:"size:200" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is a line item referencing a cataloged product. Price is a
// snapshot of the product price at the time the item was added. Items are
// removed with their order, and with the referenced product.
type OrderItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id,string"`
	OrderID   int64     `gorm:"not null;index" json:"order_id,string"`
	Order     Order     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProductID int64     `gorm:"not null;index" json:"product_id,string"`
	Product   Product   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
