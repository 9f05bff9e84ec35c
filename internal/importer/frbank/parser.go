// Package frbank reads CSV statements exported by French retail banks.
package frbank

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	enc "github.com/MrJamesThe3rd/loyer/internal/encoding"
	"github.com/MrJamesThe3rd/loyer/internal/money"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

// Parser produces statement lines from a bank CSV export. It detects the
// layout by matching column headers against known profiles.
type Parser struct {
	profiles []Profile
}

// NewParser restricts detection to the named profiles, or tries all of them when none is given.
func NewParser(names ...string) (*Parser, error) {
	if len(names) == 0 {
		return &Parser{profiles: profiles}, nil
	}

	var selected []Profile

	for _, name := range names {
		found := false

		for _, p := range profiles {
			if p.Name == name {
				selected = append(selected, p)
				found = true

				break
			}
		}

		if !found {
			return nil, fmt.Errorf("unknown bank profile %q", name)
		}
	}

	return &Parser{profiles: selected}, nil
}

func (p *Parser) Parse(r io.Reader) ([]payment.StatementLine, error) {
	charset, utf8r, err := enc.Detect(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	profile, cols, headerIdx := p.detectProfile(rows)
	if profile == nil {
		return nil, fmt.Errorf("no matching bank format found: supported formats are %s", strings.Join(ProfileNames(), ", "))
	}

	slog.Debug("parsing bank statement", "profile", profile.Name, "charset", charset)

	return parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
}

// colIndex maps lower-cased column names to their index in the row.
type colIndex map[string]int

func (c colIndex) of(name string) int {
	return c[strings.ToLower(name)]
}

func (p *Parser) detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			if name != "" {
				cols[name] = i
			}
		}

		for i := range p.profiles {
			if matchesProfile(&p.profiles[i], cols) {
				return &p.profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[strings.ToLower(name)]; !ok {
			return false
		}
	}

	return true
}

// parseRows extracts statement lines using the matched profile.
// headerRowNum is the 0-based index of the header in the original file (for error messages).
func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int) ([]payment.StatementLine, error) {
	dateIdx := cols.of(p.DateCol)
	labelIdx := cols.of(p.LabelCol)

	var lines []payment.StatementLine

	for i, row := range rows {
		rowNum := headerRowNum + i + 2

		date, ok := parseDate(cellValue(row, dateIdx))
		if !ok {
			continue
		}

		label := strings.Join(strings.Fields(cellValue(row, labelIdx)), " ")
		if label == "" {
			return nil, fmt.Errorf("row %d: missing label", rowNum)
		}

		amount, ok := parseAmount(p, cols, row)
		if !ok {
			continue
		}

		lines = append(lines, payment.StatementLine{
			Date:   date,
			Amount: amount,
			Label:  label,
		})
	}

	return lines, nil
}

// parseDate returns false for empty cells or unparseable values (footer rows, balances).
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// parseAmount returns a signed amount in cents: credits positive, debits negative.
func parseAmount(p *Profile, cols colIndex, row []string) (int64, bool) {
	switch p.AmountMode {
	case amountSingle:
		cents, ok := parseCents(cellValue(row, cols.of(p.AmountCol)))
		return cents, ok && cents != 0
	case amountSplit:
		if cents, ok := parseCents(cellValue(row, cols.of(p.DebitCol))); ok && cents != 0 {
			return -abs(cents), true
		}

		if cents, ok := parseCents(cellValue(row, cols.of(p.CreditCol))); ok && cents != 0 {
			return abs(cents), true
		}
	}

	return 0, false
}

func parseCents(s string) (int64, bool) {
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, false
	}

	cents, err := money.Parse(s)
	if err != nil {
		return 0, false
	}

	return cents, true
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}

	return n
}
