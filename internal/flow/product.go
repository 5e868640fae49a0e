package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/talkincode/shopbot/internal/domain"
	"github.com/talkincode/shopbot/internal/session"
	"github.com/talkincode/shopbot/internal/store"
	"github.com/talkincode/shopbot/pkg/common"
)

// parseProductFields parses "barcode | name | price" (comma also accepted).
// The barcode must be numeric and the price a positive number.
func parseProductFields(text string) (session.ProductDraft, error) {
	sep := ","
	if strings.Contains(text, "|") {
		sep = "|"
	}
	parts := common.SplitAndTrim(text, sep)
	if len(parts) != 3 {
		return session.ProductDraft{}, fmt.Errorf("want 3 fields, got %d", len(parts))
	}
	barcode, name := parts[0], parts[1]
	if !common.IsDigits(barcode) {
		return session.ProductDraft{}, fmt.Errorf("barcode %q is not numeric", barcode)
	}
	if name == "" {
		return session.ProductDraft{}, errors.New("empty product name")
	}
	price, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return session.ProductDraft{}, fmt.Errorf("price %q is not a number", parts[2])
	}
	if price <= 0 {
		return session.ProductDraft{}, fmt.Errorf("price %v is not positive", price)
	}
	return session.ProductDraft{Barcode: barcode, Name: name, Price: price}, nil
}

// stepProductFields validates the pipe-delimited fields and advances to the
// photo step. Malformed input resets the flow entirely, so the next message
// is treated as a fresh command rather than a stale continuation.
func (e *Engine) stepProductFields(uid string, in Incoming) StepResult {
	draft, err := parseProductFields(in.Text)
	if err != nil {
		e.sessions.Clear(uid)
		return StepResult{Kind: KindValidation, Text: msgProductFormat, Err: err}
	}
	e.sessions.Set(uid, session.State{Step: session.StepProductPhoto, Draft: draft})
	return StepResult{Kind: KindOK, Text: msgPhotoPrompt}
}

// stepProductPhoto persists the product once the photo arrives. The insert
// relies on the unique constraint to reject duplicates; there is no
// check-then-act pre-query.
func (e *Engine) stepProductPhoto(ctx context.Context, uid string, st session.State, in Incoming) StepResult {
	if in.Photo == nil {
		return StepResult{Kind: KindValidation, Text: msgPhotoExpected}
	}

	p := &domain.Product{
		OwnerID: uid,
		Barcode: st.Draft.Barcode,
		Name:    st.Draft.Name,
		Price:   st.Draft.Price,
		PhotoID: in.PhotoID,
	}
	err := e.catalog.Create(ctx, p)
	// terminal step: the state is cleared on every outcome
	e.sessions.Clear(uid)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return StepResult{Kind: KindConflict, Text: msgProductExists, Err: err}
	case err != nil:
		return StepResult{Kind: KindStorage, Err: err}
	}
	return StepResult{Kind: KindOK, Text: fmt.Sprintf("%s\n📦 %s\n🔖 %s\n💵 %s",
		msgProductSaved, p.Name, p.Barcode, formatPrice(p.Price))}
}

func (e *Engine) showCatalog(ctx context.Context, uid string) StepResult {
	products, err := e.catalog.List(ctx, uid, e.cfg.CatalogLimit)
	if err != nil {
		return StepResult{Kind: KindStorage, Err: err}
	}
	if len(products) == 0 {
		return StepResult{Kind: KindOK, Text: msgCatalogEmpty}
	}
	var sb strings.Builder
	sb.WriteString("Your latest products:\n")
	for _, p := range products {
		fmt.Fprintf(&sb, "📦 %s · 🔖 %s · 💵 %s\n", p.Name, p.Barcode, formatPrice(p.Price))
	}
	return StepResult{Kind: KindOK, Text: strings.TrimRight(sb.String(), "\n")}
}

func (e *Engine) exportCatalog(ctx context.Context, uid string) StepResult {
	if e.exporter == nil {
		return StepResult{Kind: KindValidation, Text: msgUnknown}
	}
	data, err := e.exporter.ProductsWorkbook(ctx, uid)
	if err != nil {
		return StepResult{Kind: KindStorage, Err: err}
	}
	return StepResult{
		Kind: KindOK,
		Text: "📤 Here is your catalog.",
		Doc: &Document{
			FileName: "catalog.xlsx",
			MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:     data,
		},
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
