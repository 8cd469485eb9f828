package report

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{100, "100"},
		{0, "0"},
		{99.5, "99.50"},
		{10.25, "10.25"},
		{3.333, "3.33"},
		{-7, "-7"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.value); got != tt.want {
			t.Fatalf("FormatAmount(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	rep := &model.OrderReport{
		OrderID:         42,
		RealizationDate: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		Lines: []model.OrderLine{
			{Name: "Screwdriver", Article: "SCR-100", Quantity: 2, Price: 150.5, Income: 30},
			{Name: "Hammer", Article: "HMR-1", Quantity: 1, Price: 99, Income: 12.25},
		},
	}

	doc, err := Render(rep)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	if doc.FileType != "application/pdf" {
		t.Fatalf("FileType = %q, want application/pdf", doc.FileType)
	}

	if !strings.HasPrefix(doc.FileName, "order-42-") || !strings.HasSuffix(doc.FileName, ".pdf") {
		t.Fatalf("unexpected file name %q", doc.FileName)
	}

	raw, err := base64.StdEncoding.DecodeString(doc.File)
	if err != nil {
		t.Fatalf("file is not valid base64: %v", err)
	}

	if !strings.HasPrefix(string(raw), "%PDF") {
		t.Fatalf("decoded file does not look like a PDF")
	}
}

func TestRenderFileNamesUnique(t *testing.T) {
	rep := &model.OrderReport{
		OrderID:         1,
		RealizationDate: time.Now(),
	}

	first, err := Render(rep)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	second, err := Render(rep)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	if first.FileName == second.FileName {
		t.Fatalf("file names must not collide: %q", first.FileName)
	}
}
