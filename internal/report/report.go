// Package report формирует печатную форму реализации в формате PDF.
package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"

	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
)

// Document содержит готовый файл печатной формы для выдачи клиенту.
type Document struct {
	File     string
	FileType string
	FileName string
}

// FormatAmount форматирует сумму с двумя знаками после запятой.
// Целые значения выводятся без дробной части.
func FormatAmount(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Render строит PDF-документ по данным реализации. Имя файла содержит
// идентификатор реализации и случайный суффикс, исключающий коллизии.
func Render(rep *model.OrderReport) (*Document, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("Order #%d", rep.OrderID), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, rep.RealizationDate.Format("02.01.2006"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	widths := []float64{60, 35, 20, 35, 35}
	headers := []string{"Name", "Article", "Qty", "Price", "Income"}

	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	var totalPrice, totalIncome float64

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range rep.Lines {
		pdf.CellFormat(widths[0], 8, line.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, line.Article, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 8, strconv.FormatInt(line.Quantity, 10), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 8, FormatAmount(line.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 8, FormatAmount(line.Income), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)

		totalPrice += line.Price * float64(line.Quantity)
		totalIncome += line.Income * float64(line.Quantity)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, FormatAmount(totalPrice), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[4], 8, FormatAmount(totalIncome), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return &Document{
		File:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		FileType: "application/pdf",
		FileName: fmt.Sprintf("order-%d-%s.pdf", rep.OrderID, uuid.NewString()),
	}, nil
}
