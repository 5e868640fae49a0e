package bot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/talkincode/shopbot/internal/app"
	"github.com/talkincode/shopbot/internal/flow"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// handleTimeout bounds one inbound event end to end. It must cover the OCR
// retry budget (3 attempts x 30s plus delays).
const handleTimeout = 3 * time.Minute

// Service wraps a whatsmeow client and feeds inbound chat events into the
// conversation engine.
type Service struct {
	app    app.AppContext
	engine *flow.Engine
	client *whatsmeow.Client
	store  *sqlstore.Container
}

// New creates the WhatsApp gateway. The whatsmeow session store shares the
// application's database connection so its tables live in the same database.
func New(a app.AppContext, engine *flow.Engine) (*Service, error) {
	gdb := a.DB()
	sqlDB, err := gdb.DB()
	if err != nil {
		zap.L().Error("bot: failed to get sql.DB from gorm", zap.Error(err))
		return nil, fmt.Errorf("failed to obtain underlying sql.DB: %w", err)
	}

	// Determine driver name from config
	dbType := strings.ToLower(strings.TrimSpace(a.Config().Database.Type))
	driver := "postgres"
	switch dbType {
	case "sqlite", "sqlite3":
		driver = "sqlite3"
	case "postgres", "postgresql", "":
		driver = "postgres"
	}

	container := sqlstore.NewWithDB(sqlDB, driver, nil)
	if err := container.Upgrade(); err != nil {
		zap.L().Error("bot: sqlstore.Upgrade failed", zap.Error(err), zap.String("driver", driver))
		return nil, fmt.Errorf("sqlstore upgrade failed: %w", err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("sqlstore GetFirstDevice failed: %w", err)
	}
	if device.PushName == "" {
		device.PushName = a.Config().Bot.Device
	}

	svc := &Service{app: a, engine: engine, client: whatsmeow.NewClient(device, nil), store: container}
	svc.client.AddEventHandler(svc.handleEvent)

	setGlobalService(svc)
	zap.L().Info("bot: service initialized", zap.String("driver", driver))
	return svc, nil
}

// Start connects the client and blocks until the context is cancelled. When
// the device is not yet paired, the pairing QR code is printed to stdout.
func (s *Service) Start(ctx context.Context) error {
	if s.client.Store.ID == nil {
		qrChan, err := s.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("qr channel: %w", err)
		}
		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					fmt.Println("Scan this QR code with WhatsApp to pair the bot:")
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
				} else {
					zap.L().Info("bot: pairing event", zap.String("event", evt.Event))
				}
			}
		}()
	}

	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp connect: %w", err)
	}
	zap.L().Info("bot: client connected, waiting for events")

	<-ctx.Done()
	zap.L().Info("bot: shutting down client")
	s.client.Disconnect()
	return nil
}

func (s *Service) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.onMessage(v)
	case *events.Connected:
		zap.L().Info("bot: connected")
	case *events.LoggedOut:
		zap.L().Warn("bot: device logged out, re-pairing required")
	default:
		zap.L().Debug("bot: event", zap.String("type", fmt.Sprintf("%T", evt)))
	}
}

// onMessage reduces a WhatsApp message to the flow.Incoming shape and runs
// the engine in its own goroutine so a slow OCR call only delays that one
// chat.
func (s *Service) onMessage(v *events.Message) {
	if v.Info.IsFromMe || v.Info.IsGroup {
		return
	}
	msg := v.Message
	if msg == nil {
		return
	}

	chat := v.Info.Chat.ToNonAD()
	uid := chat.String()

	in := flow.Incoming{Text: extractText(msg)}
	if img := msg.GetImageMessage(); img != nil {
		in.PhotoID = img.GetDirectPath()
		in.Photo = func(ctx context.Context) ([]byte, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return s.client.Download(img)
		}
	}
	if in.Text == "" && in.Photo == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()

		for _, reply := range s.engine.Handle(ctx, uid, in) {
			if reply.Text != "" {
				if err := s.sendText(ctx, chat, reply.Text); err != nil {
					zap.L().Warn("bot: send message failed", zap.String("jid", uid), zap.Error(err))
				}
			}
			if reply.Document != nil {
				if err := s.sendDocument(ctx, chat, reply.Document); err != nil {
					zap.L().Warn("bot: send document failed", zap.String("jid", uid), zap.Error(err))
				}
			}
		}
	}()
}

func extractText(msg *waE2E.Message) string {
	if body := msg.GetConversation(); body != "" {
		return body
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	return ""
}

func (s *Service) sendText(ctx context.Context, to waTypes.JID, text string) error {
	_, err := s.client.SendMessage(ctx, to, &waE2E.Message{Conversation: proto.String(text)})
	return err
}

func (s *Service) sendDocument(ctx context.Context, to waTypes.JID, doc *flow.Document) error {
	up, err := s.client.Upload(ctx, doc.Data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("media upload: %w", err)
	}
	_, err = s.client.SendMessage(ctx, to, &waE2E.Message{
		DocumentMessage: &waE2E.DocumentMessage{
			Title:         proto.String(doc.FileName),
			FileName:      proto.String(doc.FileName),
			Mimetype:      proto.String(doc.MimeType),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
		},
	})
	return err
}

// SendText sends a text message to the given jid using the running client.
func (s *Service) SendText(ctx context.Context, jid string, text string) error {
	if s == nil {
		return fmt.Errorf("bot service not initialized")
	}
	parsed, err := waTypes.ParseJID(jid)
	if err != nil {
		zap.L().Warn("bot: invalid jid", zap.Error(err), zap.String("jid", jid))
		return err
	}
	return s.sendText(ctx, parsed, text)
}

// IsConnected reports whether the underlying client holds a live socket.
func (s *Service) IsConnected() bool {
	return s != nil && s.client != nil && s.client.IsConnected()
}

// package-level global reference for the running service instance
var globalSvc *Service
var globalSvcLock sync.RWMutex

func setGlobalService(s *Service) {
	globalSvcLock.Lock()
	defer globalSvcLock.Unlock()
	globalSvc = s
}

// Get returns the running gateway instance or nil if not initialized.
func Get() *Service {
	globalSvcLock.RLock()
	defer globalSvcLock.RUnlock()
	return globalSvc
}
