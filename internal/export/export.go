package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/talkincode/shopbot/internal/store"
)

// ownerExportLimit caps a single spreadsheet; chat-scale catalogs stay far
// below it.
const ownerExportLimit = 10000

// Service renders catalog and order data as spreadsheet documents.
type Service struct {
	catalog store.CatalogRepository
	orders  store.OrderRepository
}

func NewService(catalog store.CatalogRepository, orders store.OrderRepository) *Service {
	return &Service{catalog: catalog, orders: orders}
}

// ProductsWorkbook renders one owner's catalog as an xlsx workbook.
func (s *Service) ProductsWorkbook(ctx context.Context, ownerID string) ([]byte, error) {
	products, err := s.catalog.List(ctx, ownerID, ownerExportLimit)
	if err != nil {
		return nil, err
	}

	xlsx := excelize.NewFile()
	const sheet = "Sheet1"
	headers := []string{"Barcode", "Name", "Price", "Created At"}
	for i, h := range headers {
		xlsx.SetCellValue(sheet, cellAxis(i, 1), h)
	}
	for row, p := range products {
		xlsx.SetCellValue(sheet, cellAxis(0, row+2), p.Barcode)
		xlsx.SetCellValue(sheet, cellAxis(1, row+2), p.Name)
		xlsx.SetCellValue(sheet, cellAxis(2, row+2), p.Price)
		xlsx.SetCellValue(sheet, cellAxis(3, row+2), p.CreatedAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := xlsx.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OrderWorkbook renders one order's line items as an xlsx workbook.
func (s *Service) OrderWorkbook(ctx context.Context, orderID int64) ([]byte, error) {
	items, err := s.orders.Items(ctx, orderID)
	if err != nil {
		return nil, err
	}

	xlsx := excelize.NewFile()
	const sheet = "Sheet1"
	headers := []string{"Product ID", "Quantity", "Price", "Added At"}
	for i, h := range headers {
		xlsx.SetCellValue(sheet, cellAxis(i, 1), h)
	}
	total := 0.0
	for row, it := range items {
		xlsx.SetCellValue(sheet, cellAxis(0, row+2), it.ProductID)
		xlsx.SetCellValue(sheet, cellAxis(1, row+2), it.Quantity)
		xlsx.SetCellValue(sheet, cellAxis(2, row+2), it.Price)
		xlsx.SetCellValue(sheet, cellAxis(3, row+2), it.CreatedAt.Format(time.RFC3339))
		total += it.Price * float64(it.Quantity)
	}
	xlsx.SetCellValue(sheet, cellAxis(0, len(items)+2), "Total")
	xlsx.SetCellValue(sheet, cellAxis(2, len(items)+2), total)

	var buf bytes.Buffer
	if err := xlsx.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type productCSVRow struct {
	OwnerID   string  `csv:"owner_id"`
	Barcode   string  `csv:"barcode"`
	Name      string  `csv:"name"`
	Price     float64 `csv:"price"`
	CreatedAt string  `csv:"created_at"`
}

// ProductsCSV renders all products across owners as CSV for the admin API.
func (s *Service) ProductsCSV(ctx context.Context) ([]byte, error) {
	products, _, err := s.catalog.ListAll(ctx, 1, ownerExportLimit)
	if err != nil {
		return nil, err
	}
	rows := make([]productCSVRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, productCSVRow{
			OwnerID:   p.OwnerID,
			Barcode:   p.Barcode,
			Name:      p.Name,
			Price:     p.Price,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		})
	}
	return gocsv.MarshalBytes(&rows)
}

// cellAxis converts a zero-based column index and one-based row to an axis
// like "B3". Column count here never exceeds 26.
func cellAxis(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}
