package rendering

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TemplateEngine renders the invoice HTML template with business data. It
// uses Go's html/template package with custom formatting functions.
type TemplateEngine struct {
	tmpl *template.Template
}

// NewTemplateEngine parses the built-in invoice template once. A parse
// failure is a programming error and must abort startup.
func NewTemplateEngine() (*TemplateEngine, error) {
	funcMap := template.FuncMap{
		// Money formatting
		"formatMoney":    formatMoney,
		"formatMoneyRaw": formatMoneyRaw,

		// Date formatting
		"formatDate":     formatDate,
		"formatDateLong": formatDateLong,
		"formatDateTime": formatDateTime,

		// Number formatting
		"formatDecimal":   formatDecimal,
		"formatPercent":   formatPercent,
		"formatInvoiceNo": formatInvoiceNo,

		// String utilities
		"upper": strings.ToUpper,
		"title": titleCase,
		"trim":  strings.TrimSpace,

		// Arithmetic
		"add": func(a, b interface{}) decimal.Decimal { return toDecimal(a).Add(toDecimal(b)) },
		"sub": func(a, b interface{}) decimal.Decimal { return toDecimal(a).Sub(toDecimal(b)) },
		"mul": func(a, b interface{}) decimal.Decimal { return toDecimal(a).Mul(toDecimal(b)) },
	}

	tmpl, err := template.New("sales_invoice").Funcs(funcMap).Parse(invoiceTemplate)
	if err != nil {
		return nil, NewRenderError(ErrCodeBadTemplate, "failed to parse invoice template", err)
	}

	return &TemplateEngine{tmpl: tmpl}, nil
}

// Render executes the invoice template against the document view model
func (e *TemplateEngine) Render(doc *InvoiceDocument) (string, error) {
	if doc == nil {
		return "", NewRenderError(ErrCodeInvalidHTML, "invoice document is nil", nil)
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, doc); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute invoice template", err)
	}

	return buf.String(), nil
}

// =============================================================================
// Template Functions
// =============================================================================

// formatMoney formats a decimal value as currency with symbol
// Example: 1234.56 -> "₱1,234.56"
func formatMoney(v interface{}) string {
	return "₱" + formatMoneyRaw(v)
}

// formatMoneyRaw formats a decimal value with thousand separators and two
// decimal places. Example: 1234.5 -> "1,234.50"
func formatMoneyRaw(v interface{}) string {
	d := toDecimal(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	parts := strings.Split(d.StringFixed(2), ".")
	intPart := parts[0]
	decPart := "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	return sign + result.String() + "." + decPart
}

// formatDate formats a time value as date string
// Example: time.Now() -> "2024-01-15"
func formatDate(v interface{}) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// formatDateLong formats a time value as a long-form printed date
// Example: time.Now() -> "January 15, 2024"
func formatDateLong(v interface{}) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

// formatDateTime formats a time value as datetime string
// Example: time.Now() -> "2024-01-15 14:30:00"
func formatDateTime(v interface{}) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatDecimal formats with fixed precision
func formatDecimal(v interface{}, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatPercent formats as percentage
// Example: 0.12 -> "12%"
func formatPercent(v interface{}) string {
	d := toDecimal(v).Mul(decimal.NewFromInt(100))
	return d.Round(0).String() + "%"
}

// formatInvoiceNo renders a sequence number as the printed invoice number
// Example: 42 -> "SI-00000042"
func formatInvoiceNo(sequence int64) string {
	return fmt.Sprintf("SI-%08d", sequence)
}

func titleCase(s string) string {
	caser := cases.Title(language.English)
	return caser.String(s)
}

func toDecimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case int:
		return decimal.NewFromInt(int64(val))
	case int32:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float32:
		return decimal.NewFromFloat(float64(val))
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func toTime(v interface{}) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	default:
		return time.Time{}
	}
}
