// Package export renders grade listings as XLSX workbooks.
package export

import (
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Row is one grade line of a sheet.
type Row struct {
	StudentName  string
	StudentEmail string
	Value        string
	IssuerName   string
	GivenAt      time.Time
}

var header = []any{"Student", "Email", "Grade", "Issued by", "Issued at"}

// SheetName turns title into a valid worksheet name.
func SheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Grades"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

// WriteGradeSheet writes a single-sheet workbook with a bold header row.
func WriteGradeSheet(w io.Writer, title string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "E1", bold); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		given := ""
		if !r.GivenAt.IsZero() {
			given = r.GivenAt.UTC().Format(time.RFC3339)
		}
		line := []any{r.StudentName, r.StudentEmail, r.Value, r.IssuerName, given}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "E", 24); err != nil {
		return err
	}
	return f.Write(w)
}
