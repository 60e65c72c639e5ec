// Package reports renders onboarding artifacts as PDF and XLSX downloads.
package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	devices "iot-console/internal/devices/domain"
	maintenance "iot-console/internal/maintenance/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

// BuildOnboardingPDF renders a one-page onboarding summary for a device.
func BuildOnboardingPDF(device *devices.Device, ruleList []rules.Rule, items []maintenance.Item, precautions []safety.Precaution) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Onboarding Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", device.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Type: %s", device.DeviceType))
	pdf.Ln(5)
	if device.Location != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Location: %s", device.Location))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", device.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Monitoring Rules (%d)", len(ruleList)))
	pdf.Ln(7)
	pdf.CellFormat(70, 6, "Name", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Priority", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Active", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, rule := range ruleList {
		active := "no"
		if rule.Active {
			active = "yes"
		}
		pdf.CellFormat(70, 6, rule.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, string(rule.Priority), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, active, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Maintenance Schedule (%d)", len(items)))
	pdf.Ln(7)
	pdf.CellFormat(70, 6, "Task", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Frequency", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Next Due", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range items {
		next := ""
		if !item.NextMaintenance.IsZero() {
			next = item.NextMaintenance.Format("2006-01-02")
		}
		pdf.CellFormat(70, 6, item.TaskName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, item.Frequency, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, next, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Safety Precautions (%d)", len(precautions)))
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	for _, p := range precautions {
		pdf.Cell(0, 6, fmt.Sprintf("[%s] %s", p.Severity, p.Title))
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
