package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

func TestStore_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := newWithDB(mock, nil)
	mock.ExpectQuery(`SELECT id FROM records WHERE kind = \$1 ORDER BY id`).
		WithArgs(repo.KindChecks).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	ids, err := s.List(context.Background(), repo.KindChecks)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Read(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := newWithDB(mock, nil)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT body FROM records WHERE kind = \$1 AND id = \$2`).
			WithArgs(repo.KindChecks, "c1").
			WillReturnRows(pgxmock.NewRows([]string{"body"}).
				AddRow([]byte(`{"id":"c1","timeoutSeconds":3}`)))

		rec, err := s.Read(ctx, repo.KindChecks, "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", rec["id"])
		assert.Equal(t, float64(3), rec["timeoutSeconds"])
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT body FROM records`).
			WithArgs(repo.KindChecks, "missing").
			WillReturnRows(pgxmock.NewRows([]string{"body"}))

		_, err := s.Read(ctx, repo.KindChecks, "missing")
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := newWithDB(mock, nil)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE records SET body = \$1, updated_at = now\(\) WHERE kind = \$2 AND id = \$3`).
		WithArgs(pgxmock.AnyArg(), repo.KindChecks, "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.Update(ctx, repo.KindChecks, "c1", repo.Record{"state": "up"}))

	mock.ExpectExec(`UPDATE records`).
		WithArgs(pgxmock.AnyArg(), repo.KindChecks, "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, s.Update(ctx, repo.KindChecks, "gone", repo.Record{}), repo.ErrNotFound)

	boom := errors.New("connection reset")
	mock.ExpectExec(`UPDATE records`).
		WithArgs(pgxmock.AnyArg(), repo.KindChecks, "c1").
		WillReturnError(boom)
	assert.ErrorIs(t, s.Update(ctx, repo.KindChecks, "c1", repo.Record{}), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := newWithDB(mock, nil)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO records \(kind,id,body\) VALUES \(\$1,\$2,\$3\) ON CONFLICT`).
		WithArgs(repo.KindChecks, "c1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.Create(ctx, repo.KindChecks, "c1", repo.Record{"id": "c1"}))

	mock.ExpectExec(`INSERT INTO records`).
		WithArgs(repo.KindChecks, "c1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	assert.ErrorIs(t, s.Create(ctx, repo.KindChecks, "c1", repo.Record{"id": "c1"}), repo.ErrExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}
