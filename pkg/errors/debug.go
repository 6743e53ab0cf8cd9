package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// maxChainDepth bounds the walk over wrapped and joined errors.
const maxChainDepth = 32

// ErrorDump is the log-only view of an error chain. It is never rendered to callers.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Retryable  bool
	Chain      []string
	Postgres   *PGFields
}

// PGFields are the server-side columns of a postgres error, from either driver.
type PGFields struct {
	Code       string
	Class      string
	Constraint string
	Table      string
	Detail     string
	Message    string
}

// Fields flattens the dump into logger fields, skipping empty postgres columns.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error_message": d.TopMessage,
		"error_code":    d.Code,
		"error_chain":   d.Chain,
	}
	if d.Retryable {
		fields["error_retryable"] = true
	}
	if d.Postgres == nil {
		return fields
	}
	for key, value := range map[string]string{
		"pg_code":       d.Postgres.Code,
		"pg_class":      d.Postgres.Class,
		"pg_constraint": d.Postgres.Constraint,
		"pg_table":      d.Postgres.Table,
		"pg_detail":     d.Postgres.Detail,
		"pg_message":    d.Postgres.Message,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

// Dump walks err, including errors joined with errors.Join or multierr, and
// collects what the logs need to diagnose it.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Code: CodeInternal}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	d.Retryable = MetadataFor(d.Code).Retryable
	d.Chain = walkChain(err, nil, 0)
	d.Postgres = postgresFields(err)
	return d
}

func walkChain(err error, out []string, depth int) []string {
	for e := err; e != nil && depth < maxChainDepth; depth++ {
		out = append(out, fmt.Sprintf("%T: %v", e, e))
		switch wrapped := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range wrapped.Unwrap() {
				out = walkChain(inner, out, depth+1)
			}
			return out
		case interface{ Unwrap() error }:
			e = wrapped.Unwrap()
		default:
			return out
		}
	}
	return out
}

func postgresFields(err error) *PGFields {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGFields{
			Code:       pgxErr.Code,
			Class:      sqlStateClass(pgxErr.Code),
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGFields{
			Code:       string(pqErr.Code),
			Class:      pqErr.Code.Class().Name(),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// sqlStateClass names the SQLSTATE class using lib/pq's table so both
// drivers log the same label.
func sqlStateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return pq.ErrorCode(code).Class().Name()
}
