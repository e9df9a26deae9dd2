// Package pdf renders a contract, with whatever signatures it carries, as an
// A4 document.
package pdf

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/egreed-contracts/internal/model"
)

const fontName = "Helvetica"

var errNotImage = errors.New("signature is not a png data url")

type Generator struct {
	issuer string
}

func NewGenerator(issuer string) *Generator {
	return &Generator{issuer: issuer}
}

func (g *Generator) Generate(contract model.Contract) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetTitle(contract.ContractRef, true)
	pdf.SetCreator(g.issuer, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(fontName, "B", 16)
	pdf.CellFormat(0, 10, tr(contract.Title), "", 1, "C", false, 0, "")
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Contract %s", contract.ContractRef)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Term: %s to %s", formatDate(contract.StartDate), formatDate(contract.EndDate))), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	addPartyBlock(pdf, tr, "Service provider", []string{g.issuer})
	pdf.Ln(2)
	addPartyBlock(pdf, tr, "Client", clientLines(contract.Client))
	pdf.Ln(4)

	if contract.Description != nil && strings.TrimSpace(*contract.Description) != "" {
		pdf.SetFont(fontName, "B", 12)
		pdf.CellFormat(0, 8, "Scope", "", 1, "L", false, 0, "")
		pdf.SetFont(fontName, "", 10)
		pdf.MultiCell(0, 5, tr(*contract.Description), "", "L", false)
		pdf.Ln(2)
	}

	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, "Payment", "", 1, "L", false, 0, "")

	colWidths := []float64{60, 114}
	drawTableRow(pdf, tr, []string{"Amount", formatAmount(contract.Amount, contract.Currency)}, colWidths)
	drawTableRow(pdf, tr, []string{"Contract status", string(contract.Status)}, colWidths)
	drawTableRow(pdf, tr, []string{"Payment status", string(contract.PaymentStatus)}, colWidths)
	if contract.PaymentMethod != nil {
		drawTableRow(pdf, tr, []string{"Payment method", string(*contract.PaymentMethod)}, colWidths)
	}
	if contract.TransactionID != nil {
		drawTableRow(pdf, tr, []string{"Transaction", *contract.TransactionID}, colWidths)
	}
	if contract.PaymentDate != nil {
		drawTableRow(pdf, tr, []string{"Paid on", formatDate(contract.PaymentDate)}, colWidths)
	}

	pdf.Ln(6)
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, "Signatures", "", 1, "L", false, 0, "")

	clientName := ""
	if contract.Client != nil {
		clientName = contract.Client.FullName
	}
	signatureBlock(pdf, tr, "client", "Client", clientName, contract.ClientSignature, contract.ClientSignedAt)
	signatureBlock(pdf, tr, "developer", "Service provider", g.issuer, contract.DeveloperSignature, contract.DeveloperSignedAt)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clientLines(client *model.Client) []string {
	if client == nil {
		return []string{"-"}
	}
	lines := []string{client.FullName}
	if client.Company != nil {
		lines = append(lines, safeValue(*client.Company))
	}
	lines = append(lines, fmt.Sprintf("Email: %s", safeValue(client.Email)))
	if client.Phone != nil {
		lines = append(lines, fmt.Sprintf("Phone: %s", safeValue(*client.Phone)))
	}
	return lines
}

func addPartyBlock(pdf *gofpdf.Fpdf, tr func(string) string, title string, lines []string) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64) {
	for i, col := range cols {
		style := ""
		if i == 0 {
			style = "B"
		}
		pdf.SetFont(fontName, style, 10)
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

// signatureBlock draws the captured signature image when it decodes, and a
// blank line to sign on otherwise.
func signatureBlock(pdf *gofpdf.Fpdf, tr func(string) string, key, label, name string, signature *string, signedAt *time.Time) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s: %s", label, safeValue(name))), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)

	if signature == nil {
		pdf.CellFormat(0, 12, "______________________  (not signed)", "", 1, "L", false, 0, "")
		pdf.Ln(2)
		return
	}

	img, err := decodeSignature(*signature)
	if err == nil {
		imgName := "signature-" + key
		info := pdf.RegisterImageOptionsReader(imgName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img))
		if pdf.Ok() && info != nil {
			x, y := pdf.GetXY()
			pdf.ImageOptions(imgName, x, y, 50, 0, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
			pdf.SetY(y + 50*info.Height()/info.Width() + 1)
		} else {
			pdf.ClearError()
			err = errNotImage
		}
	}
	if err != nil {
		pdf.CellFormat(0, 8, "[signature on file]", "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Signed %s", formatDateTime(signedAt)), "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func decodeSignature(raw string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(raw, prefix) {
		return nil, errNotImage
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, prefix))
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value float64, currency string) string {
	return fmt.Sprintf("%.2f %s", value, currency)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006")
}

func formatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02 Jan 2006 15:04 UTC")
}
