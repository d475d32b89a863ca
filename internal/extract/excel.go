package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel turns a workbook into a text record. Sheets are streamed row by
// row; each row becomes one line of tab-separated cells, and every sheet
// after the first is introduced by its name. Title and author come from the
// workbook's core properties.
func extractExcel(content []byte) (*Extraction, error) {
	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer book.Close()

	var body strings.Builder
	for i, sheet := range book.GetSheetList() {
		if i > 0 {
			body.WriteString(sheet)
			body.WriteByte('\n')
		}
		if err := writeSheet(&body, book, sheet); err != nil {
			return nil, err
		}
	}
	x := &Extraction{Body: body.String()}
	if props, err := book.GetDocProps(); err == nil && props != nil {
		x.Title, x.Author = props.Title, props.Creator
	}
	return x, nil
}

func writeSheet(body *strings.Builder, book *excelize.File, sheet string) error {
	rows, err := book.Rows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("read row of sheet %q: %w", sheet, err)
		}
		if len(cells) == 0 {
			continue
		}
		body.WriteString(strings.Join(cells, "\t"))
		body.WriteByte('\n')
	}
	return rows.Error()
}
