package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadRows loads raw cells from a .csv file or the first sheet of an .xlsx workbook.
func ReadRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRows(f, filepath.Ext(path))
}

// ParseRows reads rows from r according to the file extension.
func ParseRows(r io.Reader, ext string) ([][]string, error) {
	switch strings.ToLower(ext) {
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		return cr.ReadAll()
	case ".xlsx", ".xlsm":
		book, err := excelize.OpenReader(r)
		if err != nil {
			return nil, err
		}
		defer book.Close()
		sheet := book.GetSheetName(0)
		return book.GetRows(sheet)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
