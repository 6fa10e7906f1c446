package contracts

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	exportPageSize = 10000
	csvFlushEvery  = 200
	csvBufferSize  = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteCSV streams the contracts as CSV. Amounts use the digit grouping
// of the requested BCP 47 locale followed by the currency code; an
// unknown or empty locale falls back to English.
func WriteCSV(w io.Writer, items []Contract, locale string) error {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	printer := message.NewPrinter(tag)

	streamer := newCSVStreamer(w)
	header := []string{"ID", "Title", "Project", "Counterparty", "Category", "Type", "Status", "Amount", "Start Date", "End Date"}
	if err := streamer.writeRow(header); err != nil {
		return err
	}
	for _, c := range items {
		if err := streamer.writeRow([]string{
			c.ID,
			c.Title,
			c.ProjectID,
			c.CounterpartyID,
			string(c.Category),
			string(c.Type),
			string(c.Status),
			formatAmount(printer, c),
			formatDate(c.StartDate),
			formatDate(c.EndDate),
		}); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAmount(p *message.Printer, c Contract) string {
	if c.Currency == "" {
		return p.Sprintf("%d", c.Amount)
	}
	return p.Sprintf("%d %s", c.Amount, c.Currency)
}
