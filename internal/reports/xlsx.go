package reports

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	devices "iot-console/internal/devices/domain"
	maintenance "iot-console/internal/maintenance/domain"
)

// BuildMaintenanceXLSX renders a device maintenance schedule workbook.
func BuildMaintenanceXLSX(device *devices.Device, items []maintenance.Item) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	scheduleSheet := "schedule"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(scheduleSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Maintenance Schedule")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", device.Name)
	_ = f.SetCellValue(summarySheet, "A4", "Type")
	_ = f.SetCellValue(summarySheet, "B4", device.DeviceType)
	_ = f.SetCellValue(summarySheet, "A5", "Location")
	_ = f.SetCellValue(summarySheet, "B5", device.Location)
	_ = f.SetCellValue(summarySheet, "A6", "Tasks")
	_ = f.SetCellValue(summarySheet, "B6", len(items))

	_ = f.SetCellValue(scheduleSheet, "A1", "Task")
	_ = f.SetCellValue(scheduleSheet, "B1", "Frequency")
	_ = f.SetCellValue(scheduleSheet, "C1", "Priority")
	_ = f.SetCellValue(scheduleSheet, "D1", "Estimated Minutes")
	_ = f.SetCellValue(scheduleSheet, "E1", "Last Done")
	_ = f.SetCellValue(scheduleSheet, "F1", "Next Due")
	for i, item := range items {
		row := i + 2
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("A%d", row), item.TaskName)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("B%d", row), item.Frequency)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("C%d", row), item.Priority)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("D%d", row), item.EstimatedMins)
		if !item.LastMaintenance.IsZero() {
			_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("E%d", row), item.LastMaintenance.Format("2006-01-02"))
		}
		if !item.NextMaintenance.IsZero() {
			_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("F%d", row), item.NextMaintenance.Format("2006-01-02"))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
