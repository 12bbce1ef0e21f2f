package store

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// newMockStore backs a PgStore with a sqlmock connection so the SQL each
// method issues, and the arguments it binds, can be pinned without Postgres.
func newMockStore(t *testing.T) (*PgStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPgStore(db), mock
}
