package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/talkincode/shopbot/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCatalogCreateDuplicate(t *testing.T) {
	repo := NewGormCatalogRepository(newTestDB(t))
	ctx := context.Background()

	p := &domain.Product{OwnerID: "owner-a", Barcode: "4602076571121", Name: "Milk", Price: 99.5}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("Create must assign an id")
	}

	dup := &domain.Product{OwnerID: "owner-a", Barcode: "4602076571121", Name: "Other", Price: 1}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("same owner duplicate: err = %v, want ErrDuplicate", err)
	}

	// the constraint is per owner
	other := &domain.Product{OwnerID: "owner-b", Barcode: "4602076571121", Name: "Milk", Price: 99.5}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("different owner: %v", err)
	}
}

func TestCatalogGetByBarcode(t *testing.T) {
	repo := NewGormCatalogRepository(newTestDB(t))
	ctx := context.Background()

	seed := &domain.Product{OwnerID: "owner-a", Barcode: "4602076571121", Name: "Milk", Price: 99.5}
	if err := repo.Create(ctx, seed); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetByBarcode(ctx, "owner-a", "4602076571121")
	if err != nil {
		t.Fatalf("GetByBarcode: %v", err)
	}
	if got.Name != "Milk" {
		t.Errorf("name = %q", got.Name)
	}

	if _, err := repo.GetByBarcode(ctx, "owner-b", "4602076571121"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign owner lookup: err = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByBarcode(ctx, "owner-a", "00000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown barcode: err = %v, want ErrNotFound", err)
	}
}

func TestCatalogSuffixLookupPrefersNewest(t *testing.T) {
	repo := NewGormCatalogRepository(newTestDB(t))
	ctx := context.Background()

	old := &domain.Product{
		OwnerID: "owner-a", Barcode: "1111111121", Name: "Old", Price: 1,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	fresh := &domain.Product{
		OwnerID: "owner-a", Barcode: "4602076571121", Name: "Fresh", Price: 2,
		CreatedAt: time.Now(),
	}
	for _, p := range []*domain.Product{old, fresh} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.GetByBarcodeSuffix(ctx, "owner-a", "1121")
	if err != nil {
		t.Fatalf("GetByBarcodeSuffix: %v", err)
	}
	if got.Name != "Fresh" {
		t.Errorf("suffix lookup picked %q, want the newest match", got.Name)
	}

	if _, err := repo.GetByBarcodeSuffix(ctx, "owner-a", "9999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestOrderLifecycle(t *testing.T) {
	db := newTestDB(t)
	catalog := NewGormCatalogRepository(db)
	orders := NewGormOrderRepository(db)
	ctx := context.Background()

	p := &domain.Product{OwnerID: "owner-a", Barcode: "4602076571121", Name: "Milk", Price: 99.5}
	if err := catalog.Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	o := &domain.Order{OwnerID: "owner-a", Name: "Lunch"}
	if err := orders.Create(ctx, o); err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := orders.AddItem(ctx, &domain.OrderItem{OrderID: o.ID, ProductID: p.ID, Price: p.Price}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	items, err := orders.Items(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].Quantity != 1 {
		t.Errorf("quantity defaulted to %d, want 1", items[0].Quantity)
	}
	if items[0].Price != 99.5 {
		t.Errorf("price snapshot = %v, want 99.5", items[0].Price)
	}

	if err := orders.Rename(ctx, "owner-a", o.ID, "Dinner"); err != nil {
		t.Fatal(err)
	}
	got, err := orders.Get(ctx, "owner-a", o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Dinner" {
		t.Errorf("name after rename = %q", got.Name)
	}

	if err := orders.Delete(ctx, "owner-a", o.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if _, err := orders.Get(ctx, "owner-a", o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("order still present after delete: %v", err)
	}
	items, err = orders.Items(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("line items survived order deletion: %d left", len(items))
	}
}

func TestProductDeleteCascadesToOrderItems(t *testing.T) {
	db := newTestDB(t)
	catalog := NewGormCatalogRepository(db)
	orders := NewGormOrderRepository(db)
	ctx := context.Background()

	p := &domain.Product{OwnerID: "owner-a", Barcode: "4602076571121", Name: "Milk", Price: 99.5}
	if err := catalog.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	o := &domain.Order{OwnerID: "owner-a", Name: "Lunch"}
	if err := orders.Create(ctx, o); err != nil {
		t.Fatal(err)
	}
	if err := orders.AddItem(ctx, &domain.OrderItem{OrderID: o.ID, ProductID: p.ID, Price: p.Price}); err != nil {
		t.Fatal(err)
	}

	// removing a cataloged product takes its line items with it
	if err := catalog.Delete(ctx, "owner-a", p.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	items, err := orders.Items(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("line items survived product deletion: %d left", len(items))
	}

	// the order itself stays
	if _, err := orders.Get(ctx, "owner-a", o.ID); err != nil {
		t.Errorf("order should survive product deletion: %v", err)
	}
}

func TestOrderGetForeignOwner(t *testing.T) {
	orders := NewGormOrderRepository(newTestDB(t))
	ctx := context.Background()

	o := &domain.Order{OwnerID: "owner-a", Name: "Lunch"}
	if err := orders.Create(ctx, o); err != nil {
		t.Fatal(err)
	}
	if _, err := orders.Get(ctx, "owner-b", o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign owner read an order: %v", err)
	}
}
