package domain

import "time"

// Product is a catalog entry owned by the chat user who created it. The
// barcode is unique per owner; duplicates across owners are allowed.
type Product struct {
	ID        int64     `gorm:"primaryKey" json:"id,string"`
	OwnerID   string    `gorm:"size:128;not null;uniqueIndex:idx_product_owner_barcode" json:"owner_id"`
	Barcode   string    `gorm:"size:64;not null;uniqueIndex:idx_product_owner_barcode" json:"barcode"`
	Name      string    `gorm:"size:200;index" json:"name"`
	Price     float64   `json:"price"`
	PhotoID   string    `gorm:"size:1024" json:"photo_id"` // chat platform media reference (optional)
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
