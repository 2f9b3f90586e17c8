package conn

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionDSN(t *testing.T) {
	dsn, err := Option{}.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432?sslmode=disable", dsn)

	dsn, err = Option{
		Host:     "db",
		Port:     6543,
		User:     "tick",
		Password: "secret",
		Database: "refdata",
		Params:   map[string]string{"application_name": "tickrec", "": "skip"},
	}.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres://tick:secret@db:6543/refdata?application_name=tickrec&sslmode=disable", dsn)

	dsn, err = Option{ConnString: "postgres://x"}.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", dsn)
}

func TestOptionEnabled(t *testing.T) {
	assert.False(t, Option{}.Enabled())
	assert.True(t, Option{Host: "db"}.Enabled())
	assert.True(t, Option{ConnString: "postgres://x"}.Enabled())
}

func TestNewWithConn(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	client, err := NewWithConn(Option{MaxOpenConns: 2}, db)
	require.NoError(t, err)
	require.NotNil(t, client.DB())

	mock.ExpectPing()
	require.NoError(t, client.Ping(t.Context()))

	mock.ExpectClose()
	require.NoError(t, client.Close())
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = NewWithConn(Option{}, nil)
	assert.Error(t, err)
}
