// This adapter reconciles pgx's result-set surface with the storage.Rows
// contract: pgx.Rows.Close returns nothing, database/sql's returns an error,
// and the aggregation engine is written against the latter shape.
package postgres

import (
	"github.com/jackc/pgx/v5"

	"retailfact/internal/storage"
)

type pgxRows struct {
	pgx.Rows
}

var _ storage.Rows = pgxRows{}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return nil
}
