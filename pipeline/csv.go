// Package pipeline persists scraped records to the flat-file dataset and
// reads it back for downstream processing.
package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aluiziolira/bookdata-api/models"
)

// utf8BOM prefixes the output so spreadsheet tools pick up the encoding.
const utf8BOM = "\ufeff"

// MasterHeader is the fixed column order of the consolidated dataset.
var MasterHeader = []string{
	"title",
	"price",
	"rating",
	"category",
	"image",
	"product_page",
	"availability",
	"stock",
}

// WriteMasterCSV serializes books to path in the fixed schema: UTF-8 with
// BOM, header row first, every field quoted. Unknown numeric fields render
// as the empty string; availability renders as "yes"/"no". The parent
// directory is created when missing.
func WriteMasterCSV(path string, books []models.BookRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(utf8BOM); err != nil {
		f.Close()
		return fmt.Errorf("write bom: %w", err)
	}
	if err := writeQuotedRow(w, MasterHeader); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, book := range books {
		if err := writeQuotedRow(w, recordRow(book)); err != nil {
			f.Close()
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}
	return nil
}

// WriteCSV writes an arbitrary header and rows in the same dialect as the
// master file: UTF-8 BOM, every field quoted.
func WriteCSV(path string, header []string, rows [][]string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(utf8BOM); err != nil {
		f.Close()
		return fmt.Errorf("write bom: %w", err)
	}
	if err := writeQuotedRow(w, header); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writeQuotedRow(w, row); err != nil {
			f.Close()
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}
	return nil
}

// ReadCSV reads a delimited file written by this package (or any standard
// CSV), returning the header row and the data rows. A leading BOM is
// stripped.
func ReadCSV(path string) ([]string, [][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv file: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte(utf8BOM))

	reader := csv.NewReader(bytes.NewReader(raw))
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("csv file %s is empty", path)
	}
	return rows[0], rows[1:], nil
}

func recordRow(b models.BookRecord) []string {
	price := ""
	if b.Price != nil {
		price = strconv.FormatFloat(*b.Price, 'f', -1, 64)
	}
	rating := ""
	if b.Rating != nil {
		rating = strconv.Itoa(*b.Rating)
	}
	stock := ""
	if b.Stock != nil {
		stock = strconv.Itoa(*b.Stock)
	}
	availability := "no"
	if b.Availability {
		availability = "yes"
	}
	return []string{
		b.Title,
		price,
		rating,
		b.Category,
		b.Image,
		b.ProductPage,
		availability,
		stock,
	}
}

// writeQuotedRow emits one record with every field quoted, which the
// standard csv reader round-trips losslessly.
func writeQuotedRow(w *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := w.WriteString(strings.ReplaceAll(field, `"`, `""`)); err != nil {
			return err
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
