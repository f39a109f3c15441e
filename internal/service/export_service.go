package service

import (
	"fmt"

	"backend/internal/model"

	"github.com/xuri/excelize/v2"
)

// ExportService renders filtered request rows into an xlsx workbook for the
// export endpoint.
type ExportService interface {
	BuildWorkbook(requests []model.Request) (*excelize.File, error)
}

type exportService struct{}

func NewExportService() ExportService {
	return &exportService{}
}

const exportSheet = "Requests"

var exportHeaders = []string{
	"ID", "User ID", "Invoice Number", "Invoice Date", "Category",
	"Total Amount", "Status", "Approval Type", "Comments", "Created On", "Created By",
}

func (s *exportService) BuildWorkbook(requests []model.Request) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", exportSheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for rowIdx, req := range requests {
		values := []interface{}{
			req.ID,
			req.UserID,
			derefString(req.InvoiceNumber),
			derefString(req.InvoiceDate),
			derefString(req.CategoryName),
			amountString(req),
			req.CurrentStatus,
			req.ApprovalType,
			req.Comments,
			req.CreatedAt.Format("2006-01-02 15:04:05"),
			req.CreatedBy,
		}
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "K", 18); err != nil {
		return nil, err
	}

	return f, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func amountString(req model.Request) string {
	if req.TotalAmount == nil {
		return ""
	}
	return req.TotalAmount.StringFixed(2)
}
