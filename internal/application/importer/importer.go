package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"anggaran-backend/internal/application/accounts"
	unitsvc "anggaran-backend/internal/application/units"
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const DefaultChunkSize = 100

// Report is the outcome of one import batch.
type Report struct {
	Created map[string]int `json:"created"`
	Skipped int            `json:"skipped"`
	Errors  []string       `json:"errors"`
}

func newReport() *Report {
	return &Report{Created: map[string]int{}, Errors: []string{}}
}

func (r *Report) skip(reason string) {
	r.Skipped++
	r.Errors = append(r.Errors, reason)
}

// programKinds maps a level to its key in Report.Created.
var programKinds = map[domain.ProgramLevel]string{
	domain.LevelSector:      "sectors",
	domain.LevelDomain:      "domains",
	domain.LevelProgram:     "programs",
	domain.LevelActivity:    "activities",
	domain.LevelSubActivity: "subActivities",
}

// Importer persists hierarchy rows in chunks. Each chunk commits on its own; a failed chunk is
// reported and the batch continues, unless the database itself has become unreachable.
type Importer struct {
	DB        *gorm.DB
	ChunkSize int
	Log       zerolog.Logger
}

func (im *Importer) chunkSize() int {
	if im.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return im.ChunkSize
}

// ImportAccounts builds the chart of accounts from rows. Full codes already stored are skipped,
// so re-running the same file is harmless.
func (im *Importer) ImportAccounts(ctx context.Context, rows [][]string) (*Report, error) {
	report := newReport()
	built, skipped := BuildAccounts(rows)
	for _, reason := range skipped {
		im.Log.Warn().Str("kind", "accounts").Msg(reason)
		report.skip(reason)
	}

	existing, err := im.existingAccounts(ctx)
	if err != nil {
		return report, err
	}

	// Parents resolve before children regardless of file order; suffixes were already fixed in row order.
	sort.SliceStable(built, func(i, j int) bool { return built[i].Level < built[j].Level })

	ids := make(map[string]uuid.UUID, len(built))
	byLevel := make(map[int][]domain.Account)
	levels := make([]int, 0)
	for _, row := range built {
		if _, ok := existing[row.FullCode]; ok {
			report.Skipped++
			continue
		}
		var parentID *uuid.UUID
		if row.Level > 1 {
			parentCode := domain.ParentCode(row.FullCode)
			if id, ok := ids[parentCode]; ok {
				parentID = &id
			} else if id, ok := existing[parentCode]; ok {
				parentID = &id
			} else {
				reason := fmt.Sprintf("row %d: parent %s of account %s not found", row.Line, parentCode, row.FullCode)
				im.Log.Warn().Str("kind", "accounts").Msg(reason)
				report.skip(reason)
				continue
			}
		}
		acc := domain.Account{
			ID:          uuid.New(),
			Code:        row.Code,
			FullCode:    row.FullCode,
			Name:        row.Name,
			Description: row.Description,
			Level:       row.Level,
			ParentID:    parentID,
			IsLeaf:      row.IsLeaf,
		}
		ids[row.FullCode] = acc.ID
		if _, ok := byLevel[row.Level]; !ok {
			levels = append(levels, row.Level)
		}
		byLevel[row.Level] = append(byLevel[row.Level], acc)
	}

	stored := storedSet(existing)
	report.Created["accounts"] = 0
	for _, level := range levels {
		ready := make([]domain.Account, 0, len(byLevel[level]))
		for _, acc := range byLevel[level] {
			if acc.ParentID != nil && !stored[*acc.ParentID] {
				reason := fmt.Sprintf("account %s skipped: parent %s was not saved", acc.FullCode, domain.ParentCode(acc.FullCode))
				im.Log.Warn().Str("kind", "accounts").Msg(reason)
				report.skip(reason)
				continue
			}
			ready = append(ready, acc)
		}
		saved, err := persistChunks(ctx, im, "accounts", ready, func(a domain.Account) uuid.UUID { return a.ID }, report)
		for id := range saved {
			stored[id] = true
		}
		if err != nil {
			return report, err
		}
	}
	if _, err := accounts.RecomputeLeaves(ctx, im.DB); err != nil {
		return report, err
	}
	im.Log.Info().Interface("created", report.Created).Int("skipped", report.Skipped).Int("errors", len(report.Errors)).Msg("account import finished")
	return report, nil
}

func (im *Importer) existingAccounts(ctx context.Context) (map[string]uuid.UUID, error) {
	var rows []struct {
		ID       uuid.UUID
		FullCode string
	}
	if err := im.DB.WithContext(ctx).Model(&domain.Account{}).Select("id, full_code").Scan(&rows).Error; err != nil {
		return nil, domain.Storage(err, "Failed to load existing accounts")
	}
	out := make(map[string]uuid.UUID, len(rows))
	for _, r := range rows {
		out[r.FullCode] = r.ID
	}
	return out, nil
}

// ImportProgram builds the five-level program hierarchy from rows. Nodes whose path already exists
// under the same parent are skipped.
func (im *Importer) ImportProgram(ctx context.Context, rows [][]string) (*Report, error) {
	report := newReport()
	built, skipped := BuildProgram(rows)
	for _, reason := range skipped {
		im.Log.Warn().Str("kind", "program").Msg(reason)
		report.skip(reason)
	}

	existing, err := im.existingNodes(ctx)
	if err != nil {
		return report, err
	}
	units, err := unitsvc.CodeIndex(ctx, im.DB)
	if err != nil {
		return report, err
	}

	ids := make(map[string]uuid.UUID, len(built))
	parentCodes := make(map[uuid.UUID]string, len(built))
	byLevel := make(map[domain.ProgramLevel][]domain.ProgramNode)
	for _, row := range built {
		var parentID *uuid.UUID
		if parentCode := row.ParentFullCode(); parentCode != "" {
			if id, ok := ids[parentCode]; ok {
				parentID = &id
			} else if id, ok := existing[nodeKey(row.Level.Parent(), parentCode)]; ok {
				parentID = &id
			} else {
				reason := fmt.Sprintf("row %d: parent %s of %s %s not found", row.Line, parentCode, row.Level, row.FullCode)
				im.Log.Warn().Str("kind", "program").Msg(reason)
				report.skip(reason)
				continue
			}
		}
		if id, ok := existing[nodeKey(row.Level, row.FullCode)]; ok {
			ids[row.FullCode] = id
			report.Skipped++
			continue
		}

		node := domain.ProgramNode{
			ID:              uuid.New(),
			Level:           row.Level,
			ParentID:        parentID,
			Code:            row.Code(),
			FullCode:        row.FullCode,
			Name:            row.Name,
			PerformanceGoal: row.PerformanceGoal,
			Indicator:       row.Indicator,
			Unit:            row.Unit,
		}
		if row.OrgUnitCode != "" {
			if unitID, ok := units[strings.ToUpper(row.OrgUnitCode)]; ok {
				node.OrganizationalUnitID = &unitID
			} else {
				reason := fmt.Sprintf("row %d: organizational unit %s not found, %s imported without unit", row.Line, row.OrgUnitCode, row.FullCode)
				im.Log.Warn().Str("kind", "program").Msg(reason)
				report.Errors = append(report.Errors, reason)
			}
		}
		ids[row.FullCode] = node.ID
		parentCodes[node.ID] = row.ParentFullCode()
		byLevel[row.Level] = append(byLevel[row.Level], node)
	}

	stored := storedSet(existing)
	for _, level := range domain.ProgramLevels {
		ready := make([]domain.ProgramNode, 0, len(byLevel[level]))
		for _, node := range byLevel[level] {
			if node.ParentID != nil && !stored[*node.ParentID] {
				reason := fmt.Sprintf("%s %s skipped: parent %s was not saved", node.Level, node.FullCode, parentCodes[node.ID])
				im.Log.Warn().Str("kind", "program").Msg(reason)
				report.skip(reason)
				continue
			}
			ready = append(ready, node)
		}
		saved, err := persistChunks(ctx, im, programKinds[level], ready, func(n domain.ProgramNode) uuid.UUID { return n.ID }, report)
		for id := range saved {
			stored[id] = true
		}
		if err != nil {
			return report, err
		}
	}
	im.Log.Info().Interface("created", report.Created).Int("skipped", report.Skipped).Int("errors", len(report.Errors)).Msg("program import finished")
	return report, nil
}

func nodeKey(level domain.ProgramLevel, fullCode string) string {
	return string(level) + "|" + fullCode
}

func (im *Importer) existingNodes(ctx context.Context) (map[string]uuid.UUID, error) {
	var nodes []domain.ProgramNode
	if err := im.DB.WithContext(ctx).Select("id, level, full_code").Find(&nodes).Error; err != nil {
		return nil, domain.Storage(err, "Failed to load existing program nodes")
	}
	out := make(map[string]uuid.UUID, len(nodes))
	for _, n := range nodes {
		out[nodeKey(n.Level, n.FullCode)] = n.ID
	}
	return out, nil
}

func storedSet(existing map[string]uuid.UUID) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(existing))
	for _, id := range existing {
		out[id] = true
	}
	return out
}

// persistChunks inserts items in transactions of ChunkSize rows and returns the ids that were committed.
// Committed chunks stay committed when a later one fails. A failing chunk followed by a failed ping
// aborts the batch.
func persistChunks[T any](ctx context.Context, im *Importer, kind string, items []T, idOf func(T) uuid.UUID, report *Report) (map[uuid.UUID]bool, error) {
	saved := make(map[uuid.UUID]bool, len(items))
	if _, ok := report.Created[kind]; !ok {
		report.Created[kind] = 0
	}
	size := im.chunkSize()
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunk := items[start:end]
		err := im.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&chunk).Error
		})
		if err == nil {
			report.Created[kind] += len(chunk)
			for _, item := range chunk {
				saved[idOf(item)] = true
			}
			im.Log.Debug().Str("kind", kind).Int("from", start).Int("to", end).Msg("chunk committed")
			continue
		}
		im.Log.Error().Err(err).Str("kind", kind).Int("from", start).Int("to", end).Msg("chunk failed")
		report.Errors = append(report.Errors, fmt.Sprintf("%s %d-%d: %v", kind, start+1, end, err))
		if pingErr := database.Ping(ctx, im.DB); pingErr != nil {
			return saved, domain.Storage(pingErr, "Database unreachable during %s import", kind)
		}
	}
	return saved, nil
}
