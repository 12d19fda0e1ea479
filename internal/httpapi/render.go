package httpapi

import (
	"bytes"
	"html/template"

	"tokobill/backend/internal/service"
)

// invoiceHTMLTmpl renders a printable invoice using the store's default
// template settings. User-controlled fields are auto-escaped by
// html/template.
var invoiceHTMLTmpl = template.Must(template.New("invoice").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Bill.Number}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; max-width: {{if eq .Template.PaperSize "thermal-58"}}220px{{else if eq .Template.PaperSize "thermal-80"}}302px{{else}}720px{{end}}; }
    h2 { color: {{.Template.AccentColor}}; margin-bottom: 2px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border-bottom: 1px solid #ddd; padding: 4px; font-size: 13px; text-align: left; }
    td.num, th.num { text-align: right; }
    .totals td { border: none; padding: 2px 4px; }
    .footer { margin-top: 16px; font-size: 12px; color: #555; }
    .barcode { font-family: monospace; letter-spacing: 4px; margin-top: 12px; }
  </style>
</head>
<body>
  <h2>{{.Store.Name}}</h2>
  {{if .Store.Address}}<p>{{.Store.Address}}</p>{{end}}
  {{if .Template.HeaderText}}<p>{{.Template.HeaderText}}</p>{{end}}
  <p>Invoice {{.Bill.Number}}<br/>{{.Bill.CreatedAt.Format "2006-01-02 15:04"}}</p>
  {{if .Customer}}<p>Customer: {{.Customer.Name}}</p>{{end}}

  <table>
    <thead><tr><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Total</th></tr></thead>
    <tbody>
    {{range .Bill.Items}}<tr><td>{{.ProductName}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.Total}}</td></tr>
    {{end}}</tbody>
  </table>

  <table class="totals">
    <tr><td>Subtotal</td><td class="num">{{.Bill.Subtotal}}</td></tr>
    <tr><td>Tax</td><td class="num">{{.Bill.Tax}}</td></tr>
    <tr><td>Discount</td><td class="num">{{.Bill.Discount}}</td></tr>
    <tr><td><strong>Total</strong></td><td class="num"><strong>{{.Bill.Total}}</strong></td></tr>
    <tr><td>Payment</td><td class="num">{{.Bill.PaymentMethod}}</td></tr>
  </table>

  {{if .Template.ShowBarcode}}<div class="barcode">*{{.Bill.Number}}*</div>{{end}}
  {{if .Template.FooterText}}<div class="footer">{{.Template.FooterText}}</div>{{end}}
</body>
</html>
`))

func renderInvoiceHTML(data *service.BillPrintData) string {
	var buf bytes.Buffer
	if err := invoiceHTMLTmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Invoice rendering error.</p></body></html>"
	}
	return buf.String()
}
