package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"socialhub/models"
	"socialhub/storage"
	"socialhub/storage/storagetest"
)

var discard = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func openMigrated(t *testing.T, driver, dsn string) *Store {
	t.Helper()
	s, err := Open(driver, dsn, discard)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return openMigrated(t, DriverSQLite, ":memory:")
	})
}

// resetTables empties every table so a shared server database starts clean
// for each contract case.
func resetTables(t *testing.T, s *Store) {
	t.Helper()
	all := models.All()
	for i := len(all) - 1; i >= 0; i-- {
		require.NoError(t, s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(all[i]).Error)
	}
}

func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s := openMigrated(t, DriverPostgres, dsn)
		resetTables(t, s)
		return s
	})
}

func TestMySQLContract(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set; skipping mysql integration test")
	}
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s := openMigrated(t, DriverMySQL, dsn)
		resetTables(t, s)
		return s
	})
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector("oracle", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")

	_, err = Open("memory", "", discard)
	require.Error(t, err)
}

func newMocked(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return New(gdb), mock
}

func TestPing(t *testing.T) {
	s, mock := newMocked(t)
	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(fmt.Errorf("connection refused"))
	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection refused"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsCountsEveryTable(t *testing.T) {
	s, mock := newMocked(t)
	for i, table := range []string{"users", "posts", "comments", "stories", "messages"} {
		mock.ExpectQuery(`SELECT count\(\*\) FROM "` + table + `"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(i + 1))
	}

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Users: 1, Posts: 2, Comments: 3, Stories: 4, Messages: 5}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}
