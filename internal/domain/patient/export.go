package patient

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Patients"

// ExportContentType is the media type of the workbook written by Export.
const ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type exportColumn struct {
	header string
	width  float64
	value  func(p *Patient) interface{}
}

func str(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

var exportColumns = []exportColumn{
	{"Last Name", 18, func(p *Patient) interface{} { return p.LastName }},
	{"First Name", 18, func(p *Patient) interface{} { return p.FirstName }},
	{"Date of Birth", 14, func(p *Patient) interface{} {
		if p.DateOfBirth == nil {
			return nil
		}
		return p.DateOfBirth.String()
	}},
	{"Gender", 10, func(p *Patient) interface{} { return str(p.Gender) }},
	{"Email", 28, func(p *Patient) interface{} { return str(p.Email) }},
	{"Phone", 16, func(p *Patient) interface{} { return str(p.Phone) }},
	{"Address", 32, func(p *Patient) interface{} { return str(p.Address) }},
	{"Blood Type", 10, func(p *Patient) interface{} { return str(p.BloodType) }},
	{"Allergies", 28, func(p *Patient) interface{} { return str(p.Allergies) }},
	{"Emergency Contact", 22, func(p *Patient) interface{} { return str(p.EmergencyContactName) }},
	{"Emergency Phone", 16, func(p *Patient) interface{} { return str(p.EmergencyContactPhone) }},
	{"Registered", 20, func(p *Patient) interface{} { return p.CreatedAt.UTC().Format("2006-01-02 15:04") }},
}

// ExportHeader lists the column titles of the export sheet in order.
func ExportHeader() []string {
	h := make([]string, len(exportColumns))
	for i, c := range exportColumns {
		h[i] = c.header
	}
	return h
}

// Export renders patients as an XLSX workbook with one row per patient.
func Export(patients []*Patient) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Reuse the default sheet so it stays the active one.
	f.SetSheetName(f.GetSheetName(0), exportSheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, col.header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, name, name, col.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	for r, p := range patients {
		for i, col := range exportColumns {
			v := col.value(p)
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
