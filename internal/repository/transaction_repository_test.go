package repository

import (
    "context"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/iliyamo/streampass-platform/internal/model"
)

func TestTransactionCreateTxAssignsID(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectExec(`INSERT INTO transactions`).
        WithArgs(uint64(7), uint64(3), "paystack", "ref-1", int64(500000), "NGN", false, model.TxStatusSuccessful).
        WillReturnResult(sqlmock.NewResult(11, 1))
    mock.ExpectCommit()

    tx, err := db.BeginTx(context.Background(), nil)
    if err != nil {
        t.Fatalf("BeginTx: %v", err)
    }
    repo := NewTransactionRepo(db)
    row := &model.Transaction{
        UserID:           7,
        EventID:          3,
        PaymentMethod:    "paystack",
        PaymentReference: "ref-1",
        Amount:           500000,
        Currency:         "NGN",
        Status:           model.TxStatusSuccessful,
    }
    if err := repo.CreateTx(context.Background(), tx, row); err != nil {
        t.Fatalf("CreateTx: %v", err)
    }
    if row.ID != 11 {
        t.Fatalf("expected generated id 11, got %d", row.ID)
    }
    if err := tx.Commit(); err != nil {
        t.Fatalf("Commit: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestTransactionCreateOutsideTx(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    // FAILED rows go through the plain handle, no surrounding
    // transaction: they must survive the redemption abort they record.
    mock.ExpectExec(`INSERT INTO transactions`).
        WithArgs(uint64(7), uint64(3), "flutterwave", "ref-2", int64(4000), "USD", true, model.TxStatusFailed).
        WillReturnResult(sqlmock.NewResult(12, 1))

    repo := NewTransactionRepo(db)
    row := &model.Transaction{
        UserID:           7,
        EventID:          3,
        PaymentMethod:    "flutterwave",
        PaymentReference: "ref-2",
        Amount:           4000,
        Currency:         "USD",
        IsGift:           true,
        Status:           model.TxStatusFailed,
    }
    if err := repo.Create(context.Background(), row); err != nil {
        t.Fatalf("Create: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestTransactionListByUserOrder(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
    t0 := t1.Add(-time.Hour)
    mock.ExpectQuery(`FROM transactions WHERE user_id = \? ORDER BY created_at DESC`).
        WithArgs(uint64(7)).
        WillReturnRows(sqlmock.NewRows([]string{
            "id", "user_id", "event_id", "payment_method", "payment_reference",
            "amount", "currency", "is_gift", "status", "created_at",
        }).
            AddRow(2, 7, 3, "paystack", "ref-b", 500000, "NGN", false, model.TxStatusSuccessful, t1).
            AddRow(1, 7, 3, "paystack", "ref-a", 500000, "NGN", false, model.TxStatusFailed, t0))

    repo := NewTransactionRepo(db)
    out, err := repo.ListByUser(context.Background(), 7)
    if err != nil {
        t.Fatalf("ListByUser: %v", err)
    }
    if len(out) != 2 || out[0].PaymentReference != "ref-b" || out[1].Status != model.TxStatusFailed {
        t.Fatalf("unexpected rows: %+v", out)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}
