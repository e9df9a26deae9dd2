// Package excel exports the contract register as a workbook: a summary sheet
// followed by one sheet per contract status.
package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/egreed-contracts/internal/model"
)

const summarySheet = "Summary"

var statusOrder = []model.ContractStatus{
	model.ContractStatusDraft,
	model.ContractStatusPendingClient,
	model.ContractStatusPendingDeveloper,
	model.ContractStatusPartiallySigned,
	model.ContractStatusFullySigned,
	model.ContractStatusPendingPayment,
	model.ContractStatusCompleted,
	model.ContractStatusExpired,
}

type statusGroup struct {
	Status    model.ContractStatus
	Contracts []model.Contract
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(contracts []model.Contract, generatedAt time.Time) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	file.SetSheetName("Sheet1", summarySheet)
	groups := groupByStatus(contracts)
	if err := g.writeSummary(file, summarySheet, contracts, groups, generatedAt); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, group := range groups {
		sheetName := buildSheetName(string(group.Status), usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		if err := g.writeDetail(file, sheetName, group); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, contracts []model.Contract, groups []statusGroup, generatedAt time.Time) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Generated at")
	set("B1", formatDateTime(&generatedAt))
	set("A2", "Contracts")
	set("B2", len(contracts))
	set("A3", "Paid contracts")
	set("B3", countPaid(contracts))

	tableRow := 5
	set(fmt.Sprintf("A%d", tableRow), "Status")
	set(fmt.Sprintf("B%d", tableRow), "Contracts")
	set(fmt.Sprintf("C%d", tableRow), "Total by currency")

	for i, group := range groups {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(group.Status))
		set(fmt.Sprintf("B%d", row), len(group.Contracts))
		set(fmt.Sprintf("C%d", row), totalsByCurrency(group.Contracts))
	}

	_ = file.SetColWidth(sheet, "A", "A", 24)
	_ = file.SetColWidth(sheet, "B", "B", 20)
	_ = file.SetColWidth(sheet, "C", "C", 40)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, group statusGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Reference",
		"Title",
		"Client",
		"Amount",
		"Currency",
		"Payment status",
		"Payment method",
		"Client signed",
		"Developer signed",
		"Paid on",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, contract := range group.Contracts {
		row := i + 2
		set(fmt.Sprintf("A%d", row), contract.ContractRef)
		set(fmt.Sprintf("B%d", row), contract.Title)
		set(fmt.Sprintf("C%d", row), clientName(contract.Client))
		set(fmt.Sprintf("D%d", row), contract.Amount)
		set(fmt.Sprintf("E%d", row), contract.Currency)
		set(fmt.Sprintf("F%d", row), string(contract.PaymentStatus))
		set(fmt.Sprintf("G%d", row), formatMethod(contract.PaymentMethod))
		set(fmt.Sprintf("H%d", row), formatDateTime(contract.ClientSignedAt))
		set(fmt.Sprintf("I%d", row), formatDateTime(contract.DeveloperSignedAt))
		set(fmt.Sprintf("J%d", row), formatDateTime(contract.PaymentDate))
	}

	_ = file.SetColWidth(sheet, "A", "A", 18)
	_ = file.SetColWidth(sheet, "B", "C", 32)
	_ = file.SetColWidth(sheet, "D", "G", 16)
	_ = file.SetColWidth(sheet, "H", "J", 20)
	return nil
}

func groupByStatus(contracts []model.Contract) []statusGroup {
	byStatus := make(map[model.ContractStatus][]model.Contract)
	for _, contract := range contracts {
		byStatus[contract.Status] = append(byStatus[contract.Status], contract)
	}
	groups := make([]statusGroup, 0, len(byStatus))
	for _, status := range statusOrder {
		if items, ok := byStatus[status]; ok {
			groups = append(groups, statusGroup{Status: status, Contracts: items})
		}
	}
	return groups
}

func buildSheetName(name string, used map[string]struct{}) string {
	base := sanitizeSheetName(name)
	if len(base) > 31 {
		base = base[:31]
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Sheet"
	}
	return value
}

func totalsByCurrency(contracts []model.Contract) string {
	totals := make(map[string]float64)
	var order []string
	for _, contract := range contracts {
		if _, seen := totals[contract.Currency]; !seen {
			order = append(order, contract.Currency)
		}
		totals[contract.Currency] += contract.Amount
	}
	parts := make([]string, 0, len(order))
	for _, currency := range order {
		parts = append(parts, fmt.Sprintf("%.2f %s", totals[currency], currency))
	}
	return strings.Join(parts, ", ")
}

func countPaid(contracts []model.Contract) int {
	count := 0
	for _, contract := range contracts {
		if contract.PaymentStatus == model.PaymentStatusPaid {
			count++
		}
	}
	return count
}

func clientName(client *model.Client) string {
	if client == nil {
		return ""
	}
	return client.FullName
}

func formatMethod(method *model.PaymentMethod) string {
	if method == nil {
		return ""
	}
	return string(*method)
}

func formatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
