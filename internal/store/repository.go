package store

import (
	"context"
	"errors"
	"time"

	"github.com/talkincode/shopbot/internal/domain"
	"github.com/talkincode/shopbot/pkg/common"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert hits the per-owner barcode unique
// constraint. Callers translate it into an "already exists" user message.
var ErrDuplicate = errors.New("store: duplicate record")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: record not found")

// CatalogRepository handles database operations for cataloged products
type CatalogRepository interface {
	// Create inserts a new product; a per-owner barcode collision yields ErrDuplicate
	Create(ctx context.Context, p *domain.Product) error

	// GetByBarcode retrieves an owner's product by exact barcode
	GetByBarcode(ctx context.Context, ownerID, barcode string) (*domain.Product, error)

	// GetByBarcodeSuffix retrieves the most recent owner's product whose barcode ends with suffix
	GetByBarcodeSuffix(ctx context.Context, ownerID, suffix string) (*domain.Product, error)

	// List retrieves an owner's most recent products
	List(ctx context.Context, ownerID string, limit int) ([]domain.Product, error)

	// ListAll retrieves products across owners with pagination (admin surface)
	ListAll(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error)

	// Delete removes an owner's product by id
	Delete(ctx context.Context, ownerID string, id int64) error
}

// OrderRepository handles database operations for orders and their line items
type OrderRepository interface {
	// Create inserts a new order
	Create(ctx context.Context, o *domain.Order) error

	// Get retrieves an owner's order by id
	Get(ctx context.Context, ownerID string, id int64) (*domain.Order, error)

	// Rename changes an order's name
	Rename(ctx context.Context, ownerID string, id int64, name string) error

	// Delete removes an order; line items go with it (FK cascade)
	Delete(ctx context.Context, ownerID string, id int64) error

	// AddItem inserts a line item referencing a cataloged product
	AddItem(ctx context.Context, item *domain.OrderItem) error

	// Items retrieves all line items of an order
	Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error)

	// List retrieves an owner's most recent orders
	List(ctx context.Context, ownerID string, limit int) ([]domain.Order, error)

	// ListAll retrieves orders across owners with pagination (admin surface)
	ListAll(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error)
}

// GormCatalogRepository is the GORM implementation of CatalogRepository
type GormCatalogRepository struct {
	db *gorm.DB
}

func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

func (r *GormCatalogRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == 0 {
		p.ID = common.UUIDint64()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *GormCatalogRepository) GetByBarcode(ctx context.Context, ownerID, barcode string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND barcode = ?", ownerID, barcode).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormCatalogRepository) GetByBarcodeSuffix(ctx context.Context, ownerID, suffix string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND barcode LIKE ?", ownerID, "%"+suffix).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormCatalogRepository) List(ctx context.Context, ownerID string, limit int) ([]domain.Product, error) {
	var rows []domain.Product
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *GormCatalogRepository) ListAll(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error) {
	var rows []domain.Product
	var total int64
	q := r.db.WithContext(ctx).Model(&domain.Product{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	return rows, total, err
}

func (r *GormCatalogRepository) Delete(ctx context.Context, ownerID string, id int64) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&domain.Product{}, id).Error
}

// GormOrderRepository is the GORM implementation of OrderRepository
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == 0 {
		o.ID = common.UUIDint64()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *GormOrderRepository) Get(ctx context.Context, ownerID string, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormOrderRepository) Rename(ctx context.Context, ownerID string, id int64, name string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]interface{}{"name": name, "updated_at": time.Now()}).Error
}

func (r *GormOrderRepository) Delete(ctx context.Context, ownerID string, id int64) error {
	// One transaction per operation; the item delete covers engines that do
	// not enforce the FK cascade.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&domain.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ?", ownerID).Delete(&domain.Order{}, id).Error
	})
}

func (r *GormOrderRepository) AddItem(ctx context.Context, item *domain.OrderItem) error {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormOrderRepository) Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	var rows []domain.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *GormOrderRepository) List(ctx context.Context, ownerID string, limit int) ([]domain.Order, error) {
	var rows []domain.Order
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *GormOrderRepository) ListAll(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error) {
	var rows []domain.Order
	var total int64
	q := r.db.WithContext(ctx).Model(&domain.Order{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	return rows, total, err
}
