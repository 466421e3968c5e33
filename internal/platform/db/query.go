package db

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/orms/orms/pkg/apperrors"
)

// Dialect builds PostgreSQL statements with $n placeholders.
var Dialect = goqu.Dialect("postgres")

// From starts a prepared select on table.
func From(table string) *goqu.SelectDataset {
	return Dialect.From(table).Prepared(true)
}

// Page counts the rows matched by ds and then returns one page of them
// selecting cols. A limit <= 0 returns every row.
func Page(ctx context.Context, q Querier, ds *goqu.SelectDataset, cols string, order []exp.OrderedExpression, limit, offset int) (pgx.Rows, int, error) {
	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, 0, apperrors.Internal("build count query", err)
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := ds.Select(goqu.L(cols)).Order(order...)
	if limit > 0 {
		page = page.Limit(uint(limit))
	}
	if offset > 0 {
		page = page.Offset(uint(offset))
	}
	pageSQL, args, err := page.ToSQL()
	if err != nil {
		return nil, 0, apperrors.Internal("build page query", err)
	}
	rows, err := q.Query(ctx, pageSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Exists reports whether any row of table matches where.
func Exists(ctx context.Context, q Querier, table string, where exp.Ex) (bool, error) {
	inner, args, err := From(table).Select(goqu.L("1")).Where(where).ToSQL()
	if err != nil {
		return false, apperrors.Internal("build exists query", err)
	}
	var ok bool
	if err := q.QueryRow(ctx, "SELECT EXISTS ("+inner+")", args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Count returns the number of rows of table matching where.
func Count(ctx context.Context, q Querier, table string, where exp.Ex) (int, error) {
	query, args, err := From(table).Select(goqu.COUNT(goqu.Star())).Where(where).ToSQL()
	if err != nil {
		return 0, apperrors.Internal("build count query", err)
	}
	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
