package auditlog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLog(t *testing.T) (*Log, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "postgres")
	return NewWithDB(sdb), mock
}

func TestRecordInsertsEvent(t *testing.T) {
	log, mock := newMockLog(t)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("tx1", "rule1", "blocked", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	st := log.Record(context.Background(), Event{
		TxID:    "tx1",
		RuleID:  "rule1",
		Message: "blocked",
		Fields:  map[string]string{"severity": "5"},
	})
	assert.True(t, st.OK(), "expected Ok, got %v", st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSurfacesDatabaseError(t *testing.T) {
	log, mock := newMockLog(t)

	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnError(assert.AnError)

	st := log.Record(context.Background(), Event{TxID: "tx1", RuleID: "rule1"})
	assert.False(t, st.OK())
	assert.False(t, st.Declined())
}

func TestRecentByTxScansRows(t *testing.T) {
	log, mock := newMockLog(t)

	now := time.Unix(0, 0)
	rows := sqlmock.NewRows([]string{"tx_id", "rule_id", "message", "fields", "created_at"}).
		AddRow("tx1", "rule1", "blocked", []byte(`{"severity":"5"}`), now).
		AddRow("tx1", "rule2", "flagged", []byte(`{}`), now)

	mock.ExpectQuery("SELECT tx_id, rule_id, message, fields, created_at FROM audit_events").
		WithArgs("tx1", 10).
		WillReturnRows(rows)

	events, err := log.RecentByTx(context.Background(), "tx1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "rule1", events[0].RuleID)
	assert.Equal(t, "5", events[0].Fields["severity"])
	assert.Equal(t, "rule2", events[1].RuleID)
}
