package flow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talkincode/shopbot/internal/domain"
	"github.com/talkincode/shopbot/internal/session"
	"github.com/talkincode/shopbot/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type passNormalizer struct{}

func (passNormalizer) Normalize(raw []byte) ([]byte, error) { return raw, nil }

type fakeRecognizer struct {
	barcode string
	err     error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, jpeg []byte) (string, error) {
	return f.barcode, f.err
}

type testEnv struct {
	engine   *Engine
	sessions *session.Store
	catalog  store.CatalogRepository
	orders   store.OrderRepository
	ocr      *fakeRecognizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "flow.db") + "?_foreign_keys=on"
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

	sessions := session.NewStore()
	catalog := store.NewGormCatalogRepository(db)
	orders := store.NewGormOrderRepository(db)
	ocr := &fakeRecognizer{}
	engine := NewEngine(sessions, catalog, orders, passNormalizer{}, ocr, nil, Config{CatalogLimit: 10})
	return &testEnv{engine: engine, sessions: sessions, catalog: catalog, orders: orders, ocr: ocr}
}

func (env *testEnv) text(t *testing.T, uid, text string) string {
	t.Helper()
	replies := env.engine.Handle(context.Background(), uid, Incoming{Text: text})
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	return replies[0].Text
}

func (env *testEnv) photo(t *testing.T, uid string, data []byte) string {
	t.Helper()
	replies := env.engine.Handle(context.Background(), uid, Incoming{
		Photo:   func(ctx context.Context) ([]byte, error) { return data, nil },
		PhotoID: "media-ref-1",
	})
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	return replies[0].Text
}

func mustContain(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Fatalf("reply %q does not contain %q", got, want)
	}
}

func TestAddProductHappyPath(t *testing.T) {
	env := newTestEnv(t)
	const uid = "62111@s.whatsapp.net"

	mustContain(t, env.text(t, uid, "add product"), "barcode | name | price")
	mustContain(t, env.text(t, uid, "12345678, Milk, 99.5"), "photo")
	mustContain(t, env.photo(t, uid, []byte("jpeg-bytes")), msgProductSaved)

	p, err := env.catalog.GetByBarcode(context.Background(), uid, "12345678")
	if err != nil {
		t.Fatalf("product not persisted: %v", err)
	}
	if p.Name != "Milk" || p.Price != 99.5 {
		t.Errorf("persisted %q/%v, want Milk/99.5", p.Name, p.Price)
	}
	if p.PhotoID != "media-ref-1" {
		t.Errorf("photo reference = %q", p.PhotoID)
	}
	if _, ok := env.sessions.Get(uid); ok {
		t.Error("state must be cleared after a successful save")
	}
}

func TestAddProductMalformedFieldsResetsFlow(t *testing.T) {
	env := newTestEnv(t)
	const uid = "u1"

	env.text(t, uid, "add product")
	mustContain(t, env.text(t, uid, "abc|Milk|99.5"), "Wrong format")

	if _, ok := env.sessions.Get(uid); ok {
		t.Fatal("malformed fields must clear the state")
	}
	// the next message is treated as a fresh command, not form input
	mustContain(t, env.text(t, uid, "no idea"), "menu")
}

func TestAddProductRejectsBadPrice(t *testing.T) {
	env := newTestEnv(t)
	for _, input := range []string{
		"12345678|Milk|free",
		"12345678|Milk|0",
		"12345678|Milk|-5",
		"12345678|Milk",
		"12345678||9.5",
	} {
		const uid = "u-price"
		env.text(t, uid, "add product")
		mustContain(t, env.text(t, uid, input), "Wrong format")
	}
}

func TestAddProductDuplicateBarcode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const uid = "owner-a"

	seed := &domain.Product{OwnerID: uid, Barcode: "12345678", Name: "Milk", Price: 99.5}
	if err := env.catalog.Create(ctx, seed); err != nil {
		t.Fatal(err)
	}

	env.text(t, uid, "add product")
	env.text(t, uid, "12345678 | Cheese | 10")
	mustContain(t, env.photo(t, uid, []byte("img")), msgProductExists)
	if _, ok := env.sessions.Get(uid); ok {
		t.Error("state must be cleared after a conflict")
	}

	// the same barcode is fine for a different owner
	env.text(t, "owner-b", "add product")
	env.text(t, "owner-b", "12345678 | Cheese | 10")
	mustContain(t, env.photo(t, "owner-b", []byte("img")), msgProductSaved)
}

func TestPhotoStepWaitsForPhoto(t *testing.T) {
	env := newTestEnv(t)
	const uid = "u1"

	env.text(t, uid, "add product")
	env.text(t, uid, "12345678 | Milk | 99.5")
	mustContain(t, env.text(t, uid, "here you go"), msgPhotoExpected)

	st, ok := env.sessions.Get(uid)
	if !ok || st.Step != session.StepProductPhoto {
		t.Fatal("text at the photo step must not advance or reset the flow")
	}
}

func TestOrderDigitsFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const uid = "owner-a"

	seed := &domain.Product{OwnerID: uid, Barcode: "4602076571121", Name: "Milk", Price: 99.5}
	if err := env.catalog.Create(ctx, seed); err != nil {
		t.Fatal(err)
	}

	mustContain(t, env.text(t, uid, "new order"), "called")
	mustContain(t, env.text(t, uid, "Lunch"), "Lunch")
	mustContain(t, env.text(t, uid, "digits"), "4 digits")
	mustContain(t, env.text(t, uid, "1121"), "Added Milk")

	st, _ := env.sessions.Get(uid)
	items, err := env.orders.Items(ctx, st.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Price != 99.5 {
		t.Fatalf("items = %+v, want one line at 99.5", items)
	}

	mustContain(t, env.text(t, uid, "done"), "finished with 1 item")
	if _, ok := env.sessions.Get(uid); ok {
		t.Error("done must clear the state")
	}
}

func TestOrderDigitsValidation(t *testing.T) {
	env := newTestEnv(t)
	const uid = "u1"

	env.text(t, uid, "new order")
	env.text(t, uid, "Lunch")
	env.text(t, uid, "digits")

	for _, bad := range []string{"12", "12345", "12a4", ""} {
		mustContain(t, env.text(t, uid, bad), "4 digits")
		st, _ := env.sessions.Get(uid)
		if st.Step != session.StepOrderDigits {
			t.Fatalf("input %q must keep the digits step, got %v", bad, st.Step)
		}
	}

	// a well-formed suffix with no match lands back in the menu
	mustContain(t, env.text(t, uid, "9999"), msgNoProduct)
	st, _ := env.sessions.Get(uid)
	if st.Step != session.StepOrderMenu {
		t.Fatalf("after a miss the step is %v, want the order menu", st.Step)
	}

	// "back" leaves the digits step without touching the order
	env.text(t, uid, "digits")
	mustContain(t, env.text(t, uid, "back"), "Order menu")
	st, _ = env.sessions.Get(uid)
	if st.Step != session.StepOrderMenu {
		t.Fatalf("back landed on %v, want the order menu", st.Step)
	}
}

func TestOrderScanHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const uid = "owner-a"

	seed := &domain.Product{OwnerID: uid, Barcode: "4602076571121", Name: "Milk", Price: 99.5}
	if err := env.catalog.Create(ctx, seed); err != nil {
		t.Fatal(err)
	}
	env.ocr.barcode = "4602076571121"

	env.text(t, uid, "new order")
	env.text(t, uid, "Lunch")
	env.text(t, uid, "scan")
	mustContain(t, env.photo(t, uid, []byte("barcode-photo")), "Added Milk")

	st, _ := env.sessions.Get(uid)
	if st.Step != session.StepOrderMenu {
		t.Fatalf("step = %v, want order menu", st.Step)
	}
}

func TestOrderScanFailureKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	const uid = "owner-a"
	env.ocr.err = errors.New("ocr endpoint down")

	env.text(t, uid, "new order")
	env.text(t, uid, "Lunch")
	before, _ := env.sessions.Get(uid)
	env.text(t, uid, "scan")

	mustContain(t, env.photo(t, uid, []byte("barcode-photo")), msgScanDown)

	after, ok := env.sessions.Get(uid)
	if !ok {
		t.Fatal("scan failure must not drop the conversation")
	}
	if after.Step != session.StepOrderMenu {
		t.Errorf("step = %v, want order menu", after.Step)
	}
	if after.OrderID != before.OrderID {
		t.Error("order changed across a failed scan")
	}
}

func TestOrderScanMissAndUnknownBarcode(t *testing.T) {
	env := newTestEnv(t)
	const uid = "owner-a"

	env.text(t, uid, "new order")
	env.text(t, uid, "Lunch")

	// recognizer processed the photo but found nothing
	env.ocr.barcode = ""
	env.text(t, uid, "scan")
	mustContain(t, env.photo(t, uid, []byte("p1")), msgScanMiss)

	// recognized a barcode that is not in the catalog
	env.ocr.barcode = "4602076571121"
	env.text(t, uid, "scan")
	mustContain(t, env.photo(t, uid, []byte("p2")), "not in your catalog")

	st, _ := env.sessions.Get(uid)
	items, err := env.orders.Items(context.Background(), st.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("misses must not add items, got %d", len(items))
	}
}

func TestCommandsReplaceInFlightFlow(t *testing.T) {
	env := newTestEnv(t)
	const uid = "u1"

	env.text(t, uid, "add product")
	mustContain(t, env.text(t, uid, "new order"), "called")

	st, _ := env.sessions.Get(uid)
	if st.Step != session.StepOrderName {
		t.Fatalf("step = %v, a command must replace the old flow", st.Step)
	}

	mustContain(t, env.text(t, uid, "cancel"), "Cancelled")
	if _, ok := env.sessions.Get(uid); ok {
		t.Error("cancel must clear the state")
	}
}

func TestCatalogCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const uid = "owner-a"

	mustContain(t, env.text(t, uid, "catalog"), msgCatalogEmpty)

	seed := &domain.Product{OwnerID: uid, Barcode: "4602076571121", Name: "Milk", Price: 99.5}
	if err := env.catalog.Create(ctx, seed); err != nil {
		t.Fatal(err)
	}
	out := env.text(t, uid, "catalog")
	mustContain(t, out, "Milk")
	mustContain(t, out, "4602076571121")
	mustContain(t, out, "99.5")
}

func TestParseProductFields(t *testing.T) {
	tests := []struct {
		in      string
		want    session.ProductDraft
		wantErr bool
	}{
		{in: "4602076571121 | Milk | 99.5", want: session.ProductDraft{Barcode: "4602076571121", Name: "Milk", Price: 99.5}},
		{in: "4602076571121, Milk, 99.5", want: session.ProductDraft{Barcode: "4602076571121", Name: "Milk", Price: 99.5}},
		{in: "12345678|Rye Bread, Sliced|42", want: session.ProductDraft{Barcode: "12345678", Name: "Rye Bread, Sliced", Price: 42}},
		{in: "abc|Milk|99.5", wantErr: true},
		{in: "12345678|Milk", wantErr: true},
		{in: "12345678|Milk|zero", wantErr: true},
		{in: "12345678|Milk|0", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseProductFields(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseProductFields(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseProductFields(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseProductFields(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
