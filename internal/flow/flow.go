package flow

import (
	"context"
	"strings"

	"github.com/talkincode/shopbot/internal/session"
	"github.com/talkincode/shopbot/internal/store"
	"go.uber.org/zap"
)

// Normalizer prepares an uploaded photo for OCR submission.
type Normalizer interface {
	Normalize(raw []byte) ([]byte, error)
}

// Recognizer extracts a barcode from a normalized JPEG. A ("", nil) return
// means the image was processed but no barcode was found.
type Recognizer interface {
	Recognize(ctx context.Context, jpeg []byte) (string, error)
}

// Exporter renders an owner's catalog as a spreadsheet.
type Exporter interface {
	ProductsWorkbook(ctx context.Context, ownerID string) ([]byte, error)
}

// Incoming is one chat event, reduced to what the step handlers need. Photo
// is nil for text-only messages; it fetches the media lazily so handlers that
// do not care never download it.
type Incoming struct {
	Text    string
	Photo   func(ctx context.Context) ([]byte, error)
	PhotoID string
}

// Document is a file attachment going back to the user.
type Document struct {
	FileName string
	MimeType string
	Data     []byte
}

// Reply is one outbound message.
type Reply struct {
	Text     string
	Document *Document
}

// Kind classifies a step outcome. Step handlers return kinds instead of
// raising; the boundary adapter in Handle turns them into user-facing text.
type Kind int

const (
	KindOK Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindExternal
	KindStorage
)

// StepResult is the outcome of one step transition.
type StepResult struct {
	Kind Kind
	Text string
	Doc  *Document
	Err  error
}

// Config carries the tunables the engine reads from runtime settings.
type Config struct {
	CatalogLimit int
}

// Engine drives the conversation state machine. All collaborators are
// injected; the engine holds no ambient globals.
type Engine struct {
	sessions   *session.Store
	catalog    store.CatalogRepository
	orders     store.OrderRepository
	normalizer Normalizer
	recognizer Recognizer
	exporter   Exporter
	cfg        Config
}

func NewEngine(
	sessions *session.Store,
	catalog store.CatalogRepository,
	orders store.OrderRepository,
	normalizer Normalizer,
	recognizer Recognizer,
	exporter Exporter,
	cfg Config,
) *Engine {
	if cfg.CatalogLimit <= 0 {
		cfg.CatalogLimit = 10
	}
	return &Engine{
		sessions:   sessions,
		catalog:    catalog,
		orders:     orders,
		normalizer: normalizer,
		recognizer: recognizer,
		exporter:   exporter,
		cfg:        cfg,
	}
}

const (
	msgGreeting = "Welcome to shopbot!\n\n" +
		"• add product - catalog a new product\n" +
		"• new order - start assembling an order\n" +
		"• catalog - show your latest products\n" +
		"• export - download your catalog as a spreadsheet\n" +
		"• cancel - abort the current form"
	msgUnknown       = "I did not understand that. Send \"menu\" to see what I can do."
	msgCancelled     = "Cancelled. Send \"menu\" to see what I can do."
	msgProductPrompt = "Enter the product as:\nbarcode | name | price\nExample: 4602076571121 | Milk | 99.5"
	msgProductFormat = "❌ Wrong format. I need: barcode | name | price, with a numeric barcode and a price above zero. The form was reset - send \"add product\" to try again."
	msgPhotoPrompt   = "📷 Now send a photo of the product."
	msgPhotoExpected = "I still need a photo of the product. Send one, or \"cancel\" to abort."
	msgProductExists = "❌ A product with this barcode already exists in your catalog."
	msgProductSaved  = "✅ Product saved!"
	msgOrderPrompt   = "What should the order be called?"
	msgOrderMenu     = "Order menu:\n• scan - scan a barcode photo\n• digits - enter the last 4 digits of a barcode\n• items - show current items\n• done - finish the order"
	msgDigitsPrompt  = "Enter exactly the last 4 digits of the barcode."
	msgDigitsFormat  = "I need exactly 4 digits. Try again, or \"back\" for the order menu."
	msgScanPrompt    = "📷 Send a photo of the barcode."
	msgScanExpected  = "I need a photo here. Send one, or \"back\" for the order menu."
	msgScanMiss      = "🔍 No barcode recognized on that photo. Try again from the order menu."
	msgScanDown      = "⚠️ Barcode scanning is unavailable right now. The order is untouched - try again in a minute."
	msgNoProduct     = "No matching product in your catalog."
	msgUnexpected    = "😞 Something went wrong on my side. Your form was reset - please start over."
	msgStorage       = "😞 Could not save that. Please try again."
	msgBadPhoto      = "❌ That image could not be read. Please send a regular photo."
	msgCatalogEmpty  = "Your catalog is empty."
)

// Handle processes one inbound event for uid and returns the replies to
// send. Panics are contained here: the state is cleared and the user gets a
// generic apology, so no failure can wedge a conversation permanently.
func (e *Engine) Handle(ctx context.Context, uid string, in Incoming) (replies []Reply) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("flow: panic in step handler",
				zap.String("uid", uid),
				zap.Any("panic", r))
			e.sessions.Clear(uid)
			replies = []Reply{{Text: msgUnexpected}}
		}
	}()

	res := e.dispatch(ctx, uid, in)
	return []Reply{e.render(uid, res)}
}

// render is the single boundary between step outcomes and user-facing
// messages. Step handlers may pre-render OK text; error kinds fall back to
// their default wording here.
func (e *Engine) render(uid string, res StepResult) Reply {
	if res.Err != nil {
		switch res.Kind {
		case KindStorage:
			zap.L().Error("flow: storage error", zap.String("uid", uid), zap.Error(res.Err))
		case KindExternal:
			zap.L().Warn("flow: external dependency failed", zap.String("uid", uid), zap.Error(res.Err))
		default:
			zap.L().Debug("flow: step rejected", zap.String("uid", uid), zap.Error(res.Err))
		}
	}
	text := res.Text
	if text == "" {
		switch res.Kind {
		case KindValidation:
			text = msgUnknown
		case KindConflict:
			text = msgProductExists
		case KindNotFound:
			text = msgNoProduct
		case KindExternal:
			text = msgScanDown
		case KindStorage:
			text = msgStorage
		default:
			text = msgUnknown
		}
	}
	return Reply{Text: text, Document: res.Doc}
}

func (e *Engine) dispatch(ctx context.Context, uid string, in Incoming) StepResult {
	cmd := normalize(in.Text)

	// Commands win over any in-flight form: starting a new flow replaces the
	// old one, so a user is never in two flows at once.
	switch cmd {
	case "/start", "start", "menu", "help":
		e.sessions.Clear(uid)
		return StepResult{Kind: KindOK, Text: msgGreeting}
	case "cancel", "/cancel":
		e.sessions.Clear(uid)
		return StepResult{Kind: KindOK, Text: msgCancelled}
	case "add product", "/add":
		e.sessions.Set(uid, session.State{Step: session.StepProductFields})
		return StepResult{Kind: KindOK, Text: msgProductPrompt}
	case "new order", "create order", "/order":
		e.sessions.Set(uid, session.State{Step: session.StepOrderName})
		return StepResult{Kind: KindOK, Text: msgOrderPrompt}
	case "catalog", "/catalog":
		e.sessions.Clear(uid)
		return e.showCatalog(ctx, uid)
	case "export", "/export":
		e.sessions.Clear(uid)
		return e.exportCatalog(ctx, uid)
	}

	st, ok := e.sessions.Get(uid)
	if !ok {
		return StepResult{Kind: KindValidation, Text: msgUnknown}
	}

	switch st.Step {
	case session.StepProductFields:
		return e.stepProductFields(uid, in)
	case session.StepProductPhoto:
		return e.stepProductPhoto(ctx, uid, st, in)
	case session.StepOrderName:
		return e.stepOrderName(ctx, uid, in)
	case session.StepOrderMenu:
		return e.stepOrderMenu(ctx, uid, st, in)
	case session.StepOrderDigits:
		return e.stepOrderDigits(ctx, uid, st, in)
	case session.StepOrderScan:
		return e.stepOrderScan(ctx, uid, st, in)
	default:
		e.sessions.Clear(uid)
		return StepResult{Kind: KindValidation, Text: msgUnknown}
	}
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
