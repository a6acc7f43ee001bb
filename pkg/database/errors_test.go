package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyErr struct{}

func (flakyErr) Error() string   { return "flaky" }
func (flakyErr) Retryable() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("syntax error"), false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, false},
		{"postgres serialization", &pq.Error{Code: "40001"}, true},
		{"postgres deadlock", &pq.Error{Code: "40P01"}, true},
		{"postgres lock not available", &pq.Error{Code: "55P03"}, true},
		{"postgres unique", &pq.Error{Code: "23505"}, false},
		{"wrapped", fmt.Errorf("tx: %w", &pq.Error{Code: "40P01"}), true},
		{"inside QueryError", wrapDriverError(&mysql.MySQLError{Number: 1213}, "UPDATE t"), true},
		{"custom marker", flakyErr{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWrapDriverError(t *testing.T) {
	assert.NoError(t, wrapDriverError(nil, "SELECT 1"))

	myErr := &mysql.MySQLError{Number: 1146, SQLState: [5]byte{'4', '2', 'S', '0', '2'}, Message: "Table 'x' doesn't exist"}
	err := wrapDriverError(myErr, "SELECT * FROM x")

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "1146", qe.Code)
	assert.Equal(t, "42S02", qe.State)
	assert.Equal(t, "SELECT * FROM x", qe.SQL)
	assert.ErrorIs(t, err, myErr)
	assert.Contains(t, err.Error(), "state=42S02")

	assert.Same(t, err, wrapDriverError(err, "other"), "already wrapped errors are returned as-is")

	pqErr := wrapDriverError(&pq.Error{Code: "23505", Message: "duplicate key"}, "INSERT")
	require.ErrorAs(t, pqErr, &qe)
	assert.Equal(t, "23505", qe.State)
	assert.Equal(t, "duplicate key", qe.Message)
}
