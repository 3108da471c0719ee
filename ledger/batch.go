package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// =============================================================================
// BATCH COMMIT - Spreadsheet-style bulk entry
// =============================================================================

// RowFailure is one rejected row. Row is 1-based, matching what a person sees.
type RowFailure struct {
	Row    int
	Fields []FieldError
}

// BatchResult reports what happened to every non-empty row.
type BatchResult struct {
	Committed []MovementID
	Failed    []RowFailure
	Skipped   int
}

// BatchCoordinator commits rows one at a time through the Service.
// Each row is its own transaction: a bad row never undoes a good one.
type BatchCoordinator struct {
	Service *Service
}

func NewBatchCoordinator(svc *Service) *BatchCoordinator {
	return &BatchCoordinator{Service: svc}
}

// Commit processes rows in order. Untouched rows are skipped silently and
// rejected rows are collected in Failed. A storage failure stops the batch:
// the rows committed so far stay committed and are returned with the error.
func (b *BatchCoordinator) Commit(ctx context.Context, rows []Draft, actor string) (BatchResult, error) {
	res := BatchResult{Committed: []MovementID{}, Failed: []RowFailure{}}

	for i, d := range rows {
		row := i + 1
		if d.IsEmpty() {
			res.Skipped++
			continue
		}

		id, err := b.Service.Create(ctx, d, actor)
		if err == nil {
			res.Committed = append(res.Committed, id)
			continue
		}

		var verr *ValidationError
		if errors.As(err, &verr) {
			res.Failed = append(res.Failed, RowFailure{Row: row, Fields: verr.Fields})
			continue
		}

		b.Service.Logger.Error("batch aborted",
			zap.Int("row", row),
			zap.Int("committed", len(res.Committed)),
			zap.Error(err))
		return res, err
	}

	b.Service.Logger.Info("batch committed",
		zap.Int("committed", len(res.Committed)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("skipped", res.Skipped))
	return res, nil
}
