package providers

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "name", "specialty", "telehealth", "in_person"}).
		AddRow("p1", "Dr. Adeyemi", "Family Medicine", true, true).
		AddRow("p2", "Dr. Brooks", "Dermatology", false, true)
	mock.ExpectQuery(`SELECT id, name, specialty, telehealth, in_person`).WillReturnRows(rows)

	repo := NewPostgresRepositoryWithDB(mock)
	provs, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, provs, 2)
	assert.Equal(t, "Dr. Adeyemi", provs[0].Name)
	assert.True(t, provs[0].Telehealth)
	assert.False(t, provs[1].Telehealth)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name`).WillReturnError(errors.New("connection refused"))

	repo := NewPostgresRepositoryWithDB(mock)
	_, err = repo.ListActive(context.Background())
	require.ErrorContains(t, err, "list active")
}
