package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/talkincode/shopbot/internal/domain"
	"github.com/talkincode/shopbot/internal/imgproc"
	"github.com/talkincode/shopbot/internal/session"
	"github.com/talkincode/shopbot/internal/store"
)

// stepOrderName creates the order and enters the management menu.
func (e *Engine) stepOrderName(ctx context.Context, uid string, in Incoming) StepResult {
	name := strings.TrimSpace(in.Text)
	if name == "" {
		return StepResult{Kind: KindValidation, Text: msgOrderPrompt}
	}
	o := &domain.Order{OwnerID: uid, Name: name}
	if err := e.orders.Create(ctx, o); err != nil {
		e.sessions.Clear(uid)
		return StepResult{Kind: KindStorage, Err: err}
	}
	e.sessions.Set(uid, session.State{Step: session.StepOrderMenu, OrderID: o.ID, OrderName: o.Name})
	return StepResult{Kind: KindOK, Text: fmt.Sprintf("🧾 Order %q created.\n\n%s", o.Name, msgOrderMenu)}
}

// stepOrderMenu branches to the scan or digits sub-flow, or finishes the
// order. Unknown choices just repeat the menu.
func (e *Engine) stepOrderMenu(ctx context.Context, uid string, st session.State, in Incoming) StepResult {
	switch normalize(in.Text) {
	case "scan", "scan barcode":
		st.Step = session.StepOrderScan
		e.sessions.Set(uid, st)
		return StepResult{Kind: KindOK, Text: msgScanPrompt}
	case "digits", "last 4", "enter digits":
		st.Step = session.StepOrderDigits
		e.sessions.Set(uid, st)
		return StepResult{Kind: KindOK, Text: msgDigitsPrompt}
	case "items", "show items":
		return e.orderSummary(ctx, st, false)
	case "done", "finish":
		e.sessions.Clear(uid)
		return e.orderSummary(ctx, st, true)
	default:
		return StepResult{Kind: KindValidation, Text: msgOrderMenu}
	}
}

// stepOrderDigits matches a product by barcode suffix and adds a line item.
// A miss keeps the user in the order menu; the order itself is never lost.
func (e *Engine) stepOrderDigits(ctx context.Context, uid string, st session.State, in Incoming) StepResult {
	digits := strings.TrimSpace(in.Text)
	if normalize(digits) == "back" {
		st.Step = session.StepOrderMenu
		e.sessions.Set(uid, st)
		return StepResult{Kind: KindOK, Text: msgOrderMenu}
	}
	if len(digits) != 4 || !isAllDigits(digits) {
		return StepResult{Kind: KindValidation, Text: msgDigitsFormat}
	}

	st.Step = session.StepOrderMenu
	e.sessions.Set(uid, st)

	product, err := e.catalog.GetByBarcodeSuffix(ctx, uid, digits)
	if errors.Is(err, store.ErrNotFound) {
		return StepResult{Kind: KindNotFound, Text: msgNoProduct + "\n\n" + msgOrderMenu, Err: err}
	}
	if err != nil {
		return StepResult{Kind: KindStorage, Err: err}
	}
	return e.addOrderItem(ctx, st, product)
}

// stepOrderScan runs the recognition pipeline on the uploaded photo. All
// failure modes return to the order menu; only the happy path inserts a line
// item.
func (e *Engine) stepOrderScan(ctx context.Context, uid string, st session.State, in Incoming) StepResult {
	text := normalize(in.Text)
	if in.Photo == nil {
		if text == "back" {
			st.Step = session.StepOrderMenu
			e.sessions.Set(uid, st)
			return StepResult{Kind: KindOK, Text: msgOrderMenu}
		}
		return StepResult{Kind: KindValidation, Text: msgScanExpected}
	}

	// every outcome below lands back in the order menu
	st.Step = session.StepOrderMenu
	e.sessions.Set(uid, st)

	raw, err := in.Photo(ctx)
	if err != nil {
		return StepResult{Kind: KindExternal, Text: msgScanDown + "\n\n" + msgOrderMenu, Err: err}
	}

	jpeg, err := e.normalizer.Normalize(raw)
	if errors.Is(err, imgproc.ErrBadImage) {
		return StepResult{Kind: KindValidation, Text: msgBadPhoto + "\n\n" + msgOrderMenu, Err: err}
	}
	if err != nil {
		return StepResult{Kind: KindExternal, Text: msgScanDown + "\n\n" + msgOrderMenu, Err: err}
	}

	barcode, err := e.recognizer.Recognize(ctx, jpeg)
	if err != nil {
		return StepResult{Kind: KindExternal, Text: msgScanDown + "\n\n" + msgOrderMenu, Err: err}
	}
	if barcode == "" {
		return StepResult{Kind: KindOK, Text: msgScanMiss + "\n\n" + msgOrderMenu}
	}

	product, err := e.catalog.GetByBarcode(ctx, uid, barcode)
	if errors.Is(err, store.ErrNotFound) {
		return StepResult{
			Kind: KindNotFound,
			Text: fmt.Sprintf("Recognized barcode %s, but it is not in your catalog.\n\n%s", barcode, msgOrderMenu),
			Err:  err,
		}
	}
	if err != nil {
		return StepResult{Kind: KindStorage, Err: err}
	}
	return e.addOrderItem(ctx, st, product)
}

func (e *Engine) addOrderItem(ctx context.Context, st session.State, product *domain.Product) StepResult {
	item := &domain.OrderItem{
		OrderID:   st.OrderID,
		ProductID: product.ID,
		Quantity:  1,
		Price:     product.Price,
	}
	if err := e.orders.AddItem(ctx, item); err != nil {
		return StepResult{Kind: KindStorage, Err: err}
	}
	return StepResult{Kind: KindOK, Text: fmt.Sprintf("✅ Added %s (%s) to order %q.\n\n%s",
		product.Name, formatPrice(product.Price), st.OrderName, msgOrderMenu)}
}

func (e *Engine) orderSummary(ctx context.Context, st session.State, final bool) StepResult {
	items, err := e.orders.Items(ctx, st.OrderID)
	if err != nil {
		return StepResult{Kind: KindStorage, Err: err}
	}
	var sb strings.Builder
	if final {
		fmt.Fprintf(&sb, "🧾 Order %q finished with %d item(s).\n", st.OrderName, len(items))
	} else {
		fmt.Fprintf(&sb, "🧾 Order %q has %d item(s).\n", st.OrderName, len(items))
	}
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	fmt.Fprintf(&sb, "💵 Total: %s", formatPrice(total))
	if !final {
		sb.WriteString("\n\n")
		sb.WriteString(msgOrderMenu)
	}
	return StepResult{Kind: KindOK, Text: sb.String()}
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
