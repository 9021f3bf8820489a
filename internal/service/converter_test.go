package service

import (
    "context"
    "database/sql"
    "errors"
    "testing"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/require"
)

type fakeConvertible struct {
    rows int64
    err  error
    call int
}

func (f *fakeConvertible) ConvertPendingTx(ctx context.Context, tx *sql.Tx, email string, userID uint64) (int64, error) {
    f.call++
    if f.err != nil {
        return 0, f.err
    }
    // First call converts, replays find nothing left.
    if f.call > 1 {
        return 0, nil
    }
    return f.rows, f.err
}

func TestConvertRunsOwnTransaction(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    passes := &fakeConvertible{rows: 2}
    gifts := &fakeConvertible{rows: 2}
    conv := NewGiftConverter(db, passes, gifts)

    mock.ExpectBegin()
    mock.ExpectCommit()
    res, err := conv.Convert(context.Background(), "ada@example.com", 12)
    require.NoError(t, err)
    require.Equal(t, int64(2), res.PassesConverted)
    require.Equal(t, int64(2), res.GiftsConverted)

    // Replay: the one-way filters find nothing to convert.
    mock.ExpectBegin()
    mock.ExpectCommit()
    res, err = conv.Convert(context.Background(), "ada@example.com", 12)
    require.NoError(t, err)
    require.Zero(t, res.PassesConverted)
    require.Zero(t, res.GiftsConverted)

    require.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertRollsBackOnGiftError(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    passes := &fakeConvertible{rows: 1}
    gifts := &fakeConvertible{err: errors.New("gift table locked")}
    conv := NewGiftConverter(db, passes, gifts)

    mock.ExpectBegin()
    mock.ExpectRollback()
    _, err = conv.Convert(context.Background(), "ada@example.com", 12)
    require.Error(t, err)
    require.NoError(t, mock.ExpectationsWereMet())
}
