package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool returns a pgxmock pool that satisfies DBTX. Tests should
// finish with ExpectationsWereMet.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}

// ExpectLockedTx expects a transaction that opens with one
// pg_advisory_xact_lock per key, in the given order.
func ExpectLockedTx(mock pgxmock.PgxPoolIface, keys ...string) {
	mock.ExpectBegin()
	for _, key := range keys {
		mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(key).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
	}
}
