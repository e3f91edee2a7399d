// Package view renders the HTML pages of the meter service.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"meterease/internal/model"
	"meterease/internal/service/billing"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	PageResult  = "result.html"
	PageBill    = "bill.html"
	PageUpload  = "upload.html"
	PageHistory = "history.html"
)

// ResultPage is the data of /view/{id}.
type ResultPage struct {
	ImageSetID          string
	Current             *model.Reading
	Previous            *model.Reading
	CurrentOriginalURL  string
	CurrentProcessedURL string
	PreviousImageURL    string
	Consumption         *model.ConsumptionRecord
	Message             string
	BillURL             string
}

// BillPage is the data of /generate-bill.
type BillPage struct {
	ImageSetID  string
	Current     string
	Previous    string
	Consumption string
	Bill        *billing.Bill
	Warning     string
	Error       string
	BillDate    time.Time
	DueDate     time.Time
}

// HistoryPage is the data of /history-page.
type HistoryPage struct {
	Entries  []model.HistoryEntry
	Page     int
	Pages    int
	Total    int
	PrevPage int
	NextPage int
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses all embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes page into w. Nothing is written when execution fails.
func (r *Renderer) Render(w io.Writer, page string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, page, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"ago": humanize.Time,
	"money": func(v float64) string {
		return humanize.CommafWithDigits(v, 2)
	},
	"units": func(v float64) string {
		return humanize.FtoaWithDigits(v, 2)
	},
	"date": func(t time.Time) string {
		return t.Format("02 Jan 2006")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}
