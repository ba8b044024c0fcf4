package importer

import (
	"fmt"
	"sort"
	"strings"

	"anggaran-backend/internal/domain"
)

// Spreadsheet layout: up to five leading code columns, then label columns.
const (
	codeColumns     = 5
	nameColumn      = 5
	goalColumn      = 6
	indicatorColumn = 7
	unitColumn      = 8
	orgUnitColumn   = 9
)

// labelPreference is the order in which label columns are tried for an account name.
var labelPreference = []int{5, 6, 7}

// AccountRow is one account resolved from a source row.
type AccountRow struct {
	Line        int
	Code        string
	FullCode    string
	Name        string
	Description string
	Level       int
	IsLeaf      bool
}

// ProgramRow is one hierarchy node resolved from a source row.
type ProgramRow struct {
	Line            int
	Level           domain.ProgramLevel
	Codes           []string
	FullCode        string
	Name            string
	PerformanceGoal string
	Indicator       string
	Unit            string
	OrgUnitCode     string
}

func (p ProgramRow) Code() string {
	return p.Codes[len(p.Codes)-1]
}

// ParentFullCode is "" for sectors.
func (p ProgramRow) ParentFullCode() string {
	return strings.Join(p.Codes[:len(p.Codes)-1], ".")
}

func isNumericCode(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BuildAccounts turns raw rows into accounts with dotted full codes. Rows with no code prefix or no name
// are skipped and reported. A repeated full code gets the first free "_N" suffix on its full code,
// code and name, in row order. Leaf flags are derived in one pass over the finished set.
func BuildAccounts(rows [][]string) ([]AccountRow, []string) {
	out := make([]AccountRow, 0, len(rows))
	var skipped []string
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		line := i + 1
		var codes []string
		for c := 0; c < codeColumns && c < len(row); c++ {
			v := cell(row, c)
			if !isNumericCode(v) {
				break
			}
			codes = append(codes, v)
		}
		if len(codes) == 0 {
			skipped = append(skipped, fmt.Sprintf("row %d: no account code", line))
			continue
		}
		name, nameAt := pickLabel(row, len(codes), -1)
		if name == "" {
			skipped = append(skipped, fmt.Sprintf("row %d: account %s has no name", line, strings.Join(codes, ".")))
			continue
		}
		description, _ := pickLabel(row, len(codes), nameAt)
		if description == "" {
			description = name
		}

		acc := AccountRow{
			Line:        line,
			Code:        codes[len(codes)-1],
			FullCode:    strings.Join(codes, "."),
			Name:        name,
			Description: description,
			Level:       len(codes),
		}
		if seen[acc.FullCode] {
			for n := 1; ; n++ {
				suffix := fmt.Sprintf("_%d", n)
				if !seen[acc.FullCode+suffix] {
					acc.FullCode += suffix
					acc.Code += suffix
					acc.Name += suffix
					break
				}
			}
		}
		seen[acc.FullCode] = true
		out = append(out, acc)
	}

	markLeaves(out)
	return out, skipped
}

// pickLabel returns the first non-empty label cell, trying the preferred columns before any other cell
// after the code prefix. Column skip is excluded.
func pickLabel(row []string, prefix, skip int) (string, int) {
	for _, c := range labelPreference {
		if c == skip || c < prefix {
			continue
		}
		if v := cell(row, c); v != "" {
			return v, c
		}
	}
	for c := prefix; c < len(row); c++ {
		if c == skip {
			continue
		}
		if v := cell(row, c); v != "" && !isNumericCode(v) {
			return v, c
		}
	}
	return "", -1
}

// markLeaves sets IsLeaf = false iff another row's full code extends this one by exactly one segment.
func markLeaves(accounts []AccountRow) {
	branches := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if a.Level > 1 {
			branches[domain.ParentCode(a.FullCode)] = true
		}
	}
	for i := range accounts {
		accounts[i].IsLeaf = !branches[accounts[i].FullCode]
	}
}

// BuildProgram turns raw rows into hierarchy nodes. The depth of a row is the number of leading
// non-empty code cells, and its full code concatenates them. Rows repeating a path already seen
// in the batch are skipped. Nodes are returned ordered by depth so parents precede children.
func BuildProgram(rows [][]string) ([]ProgramRow, []string) {
	out := make([]ProgramRow, 0, len(rows))
	var skipped []string
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		line := i + 1
		var codes []string
		for c := 0; c < codeColumns; c++ {
			v := cell(row, c)
			if v == "" {
				break
			}
			codes = append(codes, v)
		}
		if len(codes) == 0 || !isNumericCode(codes[0]) {
			skipped = append(skipped, fmt.Sprintf("row %d: no program code", line))
			continue
		}
		name := cell(row, nameColumn)
		if name == "" {
			skipped = append(skipped, fmt.Sprintf("row %d: %s has no name", line, strings.Join(codes, ".")))
			continue
		}
		node := ProgramRow{
			Line:     line,
			Level:    domain.LevelAt(len(codes)),
			Codes:    codes,
			FullCode: strings.Join(codes, "."),
			Name:     name,
		}
		if seen[node.FullCode] {
			skipped = append(skipped, fmt.Sprintf("row %d: duplicate %s %s", line, node.Level, node.FullCode))
			continue
		}
		seen[node.FullCode] = true
		if node.Level == domain.LevelSubActivity {
			node.PerformanceGoal = cell(row, goalColumn)
			node.Indicator = cell(row, indicatorColumn)
			node.Unit = cell(row, unitColumn)
			node.OrgUnitCode = cell(row, orgUnitColumn)
		}
		out = append(out, node)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return len(out[a].Codes) < len(out[b].Codes)
	})
	return out, skipped
}
