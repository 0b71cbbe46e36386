package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/merchant-review-api/internal/models"
	"github.com/noah-isme/merchant-review-api/pkg/config"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
)

// TableRegistry holds the reviewable tables in configuration order.
type TableRegistry struct {
	tables []models.ReviewTable
	byKey  map[string]models.ReviewTable
}

// NewTableRegistry converts configured tables, applying the global row limit
// and default column names where a table leaves them blank.
func NewTableRegistry(cfgs []config.TableConfig, defaultRowLimit int) *TableRegistry {
	reg := &TableRegistry{byKey: make(map[string]models.ReviewTable, len(cfgs))}
	for _, cfg := range cfgs {
		table := models.ReviewTable{
			Key:            cfg.Key,
			Label:          cfg.Label,
			Name:           cfg.Name,
			IdentityColumn: cfg.IdentityColumn,
			RowLimit:       cfg.RowLimit,
			Columns: models.ReviewColumns{
				PendingSize:   cfg.Columns.PendingSize,
				PendingGender: cfg.Columns.PendingGender,
				FinalSize:     cfg.Columns.FinalSize,
				FinalGender:   cfg.Columns.FinalGender,
				Status:        cfg.Columns.Status,
				SubmittedBy:   cfg.Columns.SubmittedBy,
				SubmittedAt:   cfg.Columns.SubmittedAt,
				ReviewedBy:    cfg.Columns.ReviewedBy,
				ReviewedAt:    cfg.Columns.ReviewedAt,
				Comments:      cfg.Columns.Comments,
			}.WithDefaults(),
		}
		if table.Label == "" {
			table.Label = table.Name
		}
		if table.RowLimit <= 0 {
			table.RowLimit = defaultRowLimit
		}
		reg.tables = append(reg.tables, table)
		reg.byKey[table.Key] = table
	}
	return reg
}

// List returns every registered table.
func (r *TableRegistry) List() []models.ReviewTable {
	out := make([]models.ReviewTable, len(r.tables))
	copy(out, r.tables)
	return out
}

// Get looks a table up by key.
func (r *TableRegistry) Get(key string) (models.ReviewTable, error) {
	table, ok := r.byKey[key]
	if !ok {
		return models.ReviewTable{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("review table %q is not configured", key))
	}
	return table, nil
}

// ResolveLocation loads the named zone. Hosts without tzdata fall back to a
// fixed UTC+8 zone, the offset of Asia/Manila.
func ResolveLocation(name string, logger *zap.Logger) *time.Location {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		name = "Asia/Manila"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("timezone unavailable, using fixed +08:00", zap.String("timezone", name), zap.Error(err))
		return time.FixedZone("PHT", 8*60*60)
	}
	return loc
}
