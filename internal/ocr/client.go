package ocr

import (
	"context"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
	"github.com/talkincode/shopbot/pkg/common"
	"go.uber.org/zap"
)

// ErrUnavailable is returned once the retry budget against the OCR endpoint
// is exhausted. It is distinct from a successful call that simply found no
// barcode, which yields ("", nil).
var ErrUnavailable = errors.New("ocr: service unavailable")

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	retryDelay     = 5 * time.Second

	// Common retail symbologies (EAN-8 through ITF-14) fall in this range.
	minBarcodeLen = 8
	maxBarcodeLen = 15
)

type Config struct {
	Url     string
	Apikey  string
	Engine  string
	Timeout time.Duration
	Retries int
	// RetryDelay overrides the pause between attempts; zero means the default.
	RetryDelay time.Duration
}

// Client submits JPEG images to an OCR.space-compatible endpoint and extracts
// barcode candidates from the parsed text.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Engine == "" {
		cfg.Engine = "2"
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = retryDelay
	}
	return &Client{cfg: cfg}
}

type parsedResult struct {
	ParsedText string `json:"ParsedText"`
}

type apiResponse struct {
	ParsedResults         []parsedResult `json:"ParsedResults"`
	IsErroredOnProcessing bool           `json:"IsErroredOnProcessing"`
	// string or array of strings depending on engine
	ErrorMessage interface{} `json:"ErrorMessage"`
}

// Recognize uploads the image and returns the best barcode candidate. A
// successful call with no qualifying digit run returns ("", nil); transport
// and processing failures are retried with a fixed delay before giving up
// with ErrUnavailable.
func (c *Client) Recognize(ctx context.Context, jpeg []byte) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", errors.Wrap(ErrUnavailable, ctx.Err().Error())
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		text, err := c.submit(ctx, jpeg)
		if err == nil {
			return ExtractBarcode(text), nil
		}
		lastErr = err
		zap.L().Warn("ocr request failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.Retries),
			zap.Error(err))
	}
	return "", errors.Wrapf(ErrUnavailable, "%d attempts: %v", c.cfg.Retries, lastErr)
}

func (c *Client) submit(ctx context.Context, jpeg []byte) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var (
		rsp  apiResponse
		code int
	)
	err := gout.POST(c.cfg.Url).
		WithContext(callCtx).
		SetForm(gout.H{
			"apikey":    c.cfg.Apikey,
			"OCREngine": c.cfg.Engine,
			"file": gout.FormType{
				FileName:    "scan.jpg",
				ContentType: "image/jpeg",
				File:        gout.FormMem(jpeg),
			},
		}).
		BindJSON(&rsp).
		Code(&code).
		Do()
	if err != nil {
		return "", err
	}
	if code != 200 {
		return "", errors.Errorf("unexpected status %d", code)
	}
	if rsp.IsErroredOnProcessing {
		return "", errors.Errorf("processing error: %v", rsp.ErrorMessage)
	}

	var sb strings.Builder
	for _, r := range rsp.ParsedResults {
		sb.WriteString(r.ParsedText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ExtractBarcode picks the longest purely-numeric token of plausible barcode
// length from the OCR text. Ties go to the first-encountered token. Returns
// "" when nothing qualifies.
func ExtractBarcode(text string) string {
	best := ""
	for _, tok := range strings.Fields(text) {
		if !common.IsDigits(tok) {
			continue
		}
		if len(tok) < minBarcodeLen || len(tok) > maxBarcodeLen {
			continue
		}
		if len(tok) > len(best) {
			best = tok
		}
	}
	return best
}
