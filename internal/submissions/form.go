package submissions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"

	"invoice-console/internal/backend"
	"invoice-console/internal/shared/util"
)

// Currencies lists the currencies offered by the form. USD is the default.
var Currencies = []string{"USD", "EUR", "GBP"}

// Input is raw numeric text as typed by the user. JSON numbers are accepted too.
type Input string

func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*in = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input(s)
		return nil
	}
	*in = Input(data)
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Float parses the leading number of the input. Anything unparseable is 0.
func (in Input) Float() float64 {
	m := leadingNumber.FindString(strings.TrimSpace(string(in)))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// LineItem is one invoice line. Total is derived from Qty and UnitPrice and has no setter.
type LineItem struct {
	Desc      string
	Qty       Input
	UnitPrice Input
	total     string
}

// NewLineItem builds a line item. The total is computed when qty or unit price is given.
func NewLineItem(desc string, qty, unitPrice Input) LineItem {
	li := LineItem{Desc: desc, Qty: qty, UnitPrice: unitPrice}
	if qty != "" || unitPrice != "" {
		li.recompute()
	}
	return li
}

// SetQty updates the quantity and recomputes the total.
func (li *LineItem) SetQty(raw Input) {
	li.Qty = raw
	li.recompute()
}

// SetUnitPrice updates the unit price and recomputes the total.
func (li *LineItem) SetUnitPrice(raw Input) {
	li.UnitPrice = raw
	li.recompute()
}

// Total is qty * unit_price rounded to cents, with two decimals. Empty only for a
// line whose qty and unit price were never edited.
func (li LineItem) Total() string {
	return li.total
}

func (li *LineItem) recompute() {
	li.total = strconv.FormatFloat(round2(li.Qty.Float()*li.UnitPrice.Float()), 'f', 2, 64)
}

type lineItemJSON struct {
	Desc      string `json:"desc"`
	Qty       Input  `json:"qty"`
	UnitPrice Input  `json:"unit_price"`
	Total     string `json:"total"`
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineItemJSON{Desc: li.Desc, Qty: li.Qty, UnitPrice: li.UnitPrice, Total: li.total})
}

// UnmarshalJSON ignores the incoming total value and derives it. A non-empty
// incoming total marks the line as edited even when both inputs are blank.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw lineItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*li = NewLineItem(raw.Desc, raw.Qty, raw.UnitPrice)
	if raw.Total != "" {
		li.recompute()
	}
	return nil
}

// Form is a new invoice being assembled for POST /workflow/run.
type Form struct {
	InvoiceID   string     `json:"invoice_id"`
	VendorName  string     `json:"vendor_name"`
	VendorTaxID string     `json:"vendor_tax_id"`
	InvoiceDate string     `json:"invoice_date"`
	DueDate     string     `json:"due_date"`
	Amount      Input      `json:"amount"`
	Currency    string     `json:"currency"`
	LineItems   []LineItem `json:"line_items"`

	Attachments []Attachment `json:"-"`
}

// NewForm returns an empty form with one blank line item.
func NewForm() Form {
	return Form{Currency: "USD", LineItems: []LineItem{{}}}
}

// AddLineItem appends a blank line.
func (f *Form) AddLineItem() {
	f.LineItems = append(f.LineItems, LineItem{})
}

// RemoveLineItem drops line i. The list may become empty.
func (f *Form) RemoveLineItem(i int) error {
	if i < 0 || i >= len(f.LineItems) {
		return fmt.Errorf("%w: %d", ErrLineItemIndex, i)
	}
	f.LineItems = append(f.LineItems[:i:i], f.LineItems[i+1:]...)
	return nil
}

// AddAttachment attaches a file whose extension is on the allow-list.
// Directory components of name are dropped.
func (f *Form) AddAttachment(name string, data []byte) error {
	name, err := util.AttachmentName(name)
	if err != nil {
		return err
	}
	if !Accepts(name) {
		return fmt.Errorf("%w: %s", ErrUnsupportedAttachment, name)
	}
	f.Attachments = append(f.Attachments, Attachment{Name: name, Data: data})
	return nil
}

// RemoveAttachment drops attachment i.
func (f *Form) RemoveAttachment(i int) error {
	if i < 0 || i >= len(f.Attachments) {
		return fmt.Errorf("%w: %d", ErrAttachmentIndex, i)
	}
	f.Attachments = append(f.Attachments[:i:i], f.Attachments[i+1:]...)
	return nil
}

// Validate checks the required fields. It never touches the network.
func (f Form) Validate() error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"invoice_id", f.InvoiceID},
		{"vendor_name", f.VendorName},
		{"invoice_date", f.InvoiceDate},
		{"due_date", f.DueDate},
		{"amount", string(f.Amount)},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	if f.Currency != "" && !validCurrency(f.Currency) {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, f.Currency)
	}
	return nil
}

type invoiceLine struct {
	Desc      string  `json:"desc"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

type invoiceDoc struct {
	InvoiceID   string        `json:"invoice_id"`
	VendorName  string        `json:"vendor_name"`
	VendorTaxID string        `json:"vendor_tax_id"`
	InvoiceDate string        `json:"invoice_date"`
	DueDate     string        `json:"due_date"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	LineItems   []invoiceLine `json:"line_items"`
	Attachments []string      `json:"attachments"`
}

// Invoice returns the structured invoice with every numeric field coerced to a number.
func (f Form) Invoice() ([]byte, error) {
	doc := invoiceDoc{
		InvoiceID:   f.InvoiceID,
		VendorName:  f.VendorName,
		VendorTaxID: f.VendorTaxID,
		InvoiceDate: f.InvoiceDate,
		DueDate:     f.DueDate,
		Amount:      f.Amount.Float(),
		Currency:    f.Currency,
		LineItems:   make([]invoiceLine, 0, len(f.LineItems)),
		Attachments: make([]string, 0, len(f.Attachments)),
	}
	if doc.Currency == "" {
		doc.Currency = "USD"
	}
	for _, li := range f.LineItems {
		doc.LineItems = append(doc.LineItems, invoiceLine{
			Desc:      li.Desc,
			Qty:       li.Qty.Float(),
			UnitPrice: li.UnitPrice.Float(),
			Total:     Input(li.Total()).Float(),
		})
	}
	for _, a := range f.Attachments {
		doc.Attachments = append(doc.Attachments, a.Name)
	}
	return json.Marshal(doc)
}

// Payload encodes the form as multipart/form-data: the invoice JSON, one
// file_<n> part per attachment, then file_count.
func (f Form) Payload() (backend.Multipart, error) {
	invoice, err := f.Invoice()
	if err != nil {
		return backend.Multipart{}, fmt.Errorf("encode invoice: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("invoice", string(invoice)); err != nil {
		return backend.Multipart{}, err
	}
	for i, a := range f.Attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file_%d"; filename="%s"`, i, quoteEscaper.Replace(a.Name)))
		h.Set("Content-Type", a.ContentType())
		part, err := w.CreatePart(h)
		if err != nil {
			return backend.Multipart{}, err
		}
		if _, err := part.Write(a.Data); err != nil {
			return backend.Multipart{}, err
		}
	}
	if err := w.WriteField("file_count", strconv.Itoa(len(f.Attachments))); err != nil {
		return backend.Multipart{}, err
	}
	if err := w.Close(); err != nil {
		return backend.Multipart{}, err
	}
	return backend.Multipart{ContentType: w.FormDataContentType(), Body: body.Bytes()}, nil
}

func validCurrency(c string) bool {
	for _, known := range Currencies {
		if c == known {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
