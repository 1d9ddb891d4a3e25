// Package oppostgres stores completed operations in Postgres
package oppostgres

import (
	"context"
	"fmt"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

// Create is idempotent by id: a redelivered event is a no-op
func (p PostgresRepo) Create(ctx context.Context, r *model.OperationRecord) error {
	query := `INSERT INTO operations (id, operation, model, prompt, source_identifier, result_identifier, result_uri, storage, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`
	_, err := p.DB.ExecContext(ctx, query, r.ID, r.Operation, r.Model, r.Prompt, r.SourceIdentifier,
		r.ResultIdentifier, r.ResultURI, r.Storage, r.CreatedAt)
	return err
}

// GetList expects req.Sort/req.Order to be already normalized to a column and ASC/DESC
func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error) {
	query := fmt.Sprintf(`SELECT id, operation, model, prompt, source_identifier, result_identifier, result_uri, storage, created_at
	FROM operations
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error while closing *sql.Rows after scanning")
		}
	}()

	records := make([]model.OperationRecord, 0, req.Limit)
	for rows.Next() {
		var r model.OperationRecord
		if err := rows.Scan(&r.ID,
			&r.Operation,
			&r.Model,
			&r.Prompt,
			&r.SourceIdentifier,
			&r.ResultIdentifier,
			&r.ResultURI,
			&r.Storage,
			&r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return records, nil
}
