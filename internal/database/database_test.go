package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

var t0 = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "fraud.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func scoredTxn(id, user string, at time.Time, c models.Classification) models.Transaction {
	return models.Transaction{
		ID:               id,
		UserID:           user,
		Amount:           12.5,
		Currency:         "USD",
		MerchantName:     "Shop",
		MerchantCategory: "Groceries",
		PaymentMethod:    "Credit Card",
		Location:         "Paris",
		Country:          "FR",
		DeviceID:         "device-1",
		Timestamp:        at,
		Status:           models.StatusApproved,
		CreatedAt:        at,
		FraudStatus: &models.FraudAssessment{
			Score:          12.34,
			Classification: c,
			Reasons:        []string{"Transaction from different device"},
			Timestamp:      at.Add(time.Second),
		},
	}
}

func decisionLog(txn models.Transaction) models.FraudLog {
	score := txn.FraudStatus.Score
	return models.FraudLog{
		ID:             "log-" + txn.ID,
		TransactionID:  txn.ID,
		UserID:         txn.UserID,
		RiskScore:      &score,
		Classification: txn.FraudStatus.Classification,
		Reasons:        txn.FraudStatus.Reasons,
		Action:         string(txn.Status),
		Timestamp:      txn.CreatedAt,
	}
}

func insert(t *testing.T, db *DB, txn models.Transaction) {
	t.Helper()
	require.NoError(t, db.InsertScoredTransaction(context.Background(), txn, decisionLog(txn)))
}

func TestInsertAndGetTransaction(t *testing.T) {
	db := setupTestDB(t)
	want := scoredTxn("txn-1", "user-1", t0.In(time.FixedZone("CET", 3600)), models.ClassificationSafe)
	insert(t, db, want)

	got, err := db.GetTransaction(context.Background(), "txn-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, 12.5, got.Amount)
	assert.True(t, got.Timestamp.Equal(want.Timestamp))
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.FraudStatus)
	assert.Equal(t, 12.34, got.FraudStatus.Score)
	assert.Equal(t, models.ClassificationSafe, got.FraudStatus.Classification)
	assert.Equal(t, []string{"Transaction from different device"}, got.FraudStatus.Reasons)
	assert.True(t, got.FraudStatus.Timestamp.Equal(t0.Add(time.Second)))
	assert.Nil(t, got.UpdatedAt)
}

func TestGetTransaction_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsert_DuplicateIDRollsBack(t *testing.T) {
	db := setupTestDB(t)
	txn := scoredTxn("txn-1", "user-1", t0, models.ClassificationSafe)
	insert(t, db, txn)

	dup := decisionLog(txn)
	dup.ID = "log-other"
	err := db.InsertScoredTransaction(context.Background(), txn, dup)
	require.Error(t, err)

	logs, err := db.ListFraudLogs(context.Background(), LogFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestGetUserHistory_Ordering(t *testing.T) {
	db := setupTestDB(t)
	insert(t, db, scoredTxn("late", "user-1", t0.Add(time.Hour), models.ClassificationSafe))
	insert(t, db, scoredTxn("tie-a", "user-1", t0, models.ClassificationSafe))
	insert(t, db, scoredTxn("tie-b", "user-1", t0, models.ClassificationSafe))
	insert(t, db, scoredTxn("early", "user-1", t0.Add(-time.Hour), models.ClassificationSafe))
	insert(t, db, scoredTxn("other", "user-2", t0, models.ClassificationSafe))

	history, err := db.GetUserHistory(context.Background(), "user-1")
	require.NoError(t, err)

	ids := make([]string, len(history))
	for i, h := range history {
		ids[i] = h.ID
	}
	assert.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, ids)
}

func TestGetUserHistory_Empty(t *testing.T) {
	db := setupTestDB(t)

	history, err := db.GetUserHistory(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestListTransactions_Filters(t *testing.T) {
	db := setupTestDB(t)
	classes := []models.Classification{
		models.ClassificationSafe, models.ClassificationSuspicious, models.ClassificationFraudulent,
	}
	for i := 0; i < 6; i++ {
		user := "user-1"
		if i%2 == 1 {
			user = "user-2"
		}
		insert(t, db, scoredTxn(fmt.Sprintf("txn-%d", i), user, t0.AddDate(0, 0, i), classes[i%3]))
	}
	ctx := context.Background()

	all, err := db.ListTransactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "txn-5", all[0].ID, "newest first")

	byUser, err := db.ListTransactions(ctx, TransactionFilter{UserID: "user-2"})
	require.NoError(t, err)
	assert.Len(t, byUser, 3)

	window, err := db.ListTransactions(ctx, TransactionFilter{From: t0.AddDate(0, 0, 2), To: t0.AddDate(0, 0, 4)})
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "txn-3", window[0].ID)
	assert.Equal(t, "txn-2", window[1].ID)

	limited, err := db.ListTransactions(ctx, TransactionFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	cases, err := db.ListFraudCases(ctx, 0)
	require.NoError(t, err)
	require.Len(t, cases, 4)
	for _, c := range cases {
		assert.NotEqual(t, models.ClassificationSafe, c.FraudStatus.Classification)
	}
}

func TestUpdateStatus_PreservesAssessment(t *testing.T) {
	db := setupTestDB(t)
	txn := scoredTxn("txn-1", "user-1", t0, models.ClassificationFraudulent)
	txn.Status = models.StatusBlocked
	insert(t, db, txn)

	at := t0.Add(time.Hour)
	got, err := db.UpdateStatus(context.Background(), StatusUpdate{
		ID:       "txn-1",
		Status:   models.StatusApproved,
		Notes:    "customer confirmed",
		By:       "admin-1",
		Override: true,
		At:       at,
	}, models.FraudLog{
		ID:            "log-override",
		TransactionID: "txn-1",
		UserID:        "user-1",
		Action:        "approved",
		AdminID:       "admin-1",
		Notes:         "customer confirmed",
		Timestamp:     at,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, got.Status)
	assert.True(t, got.AdminOverride)
	assert.Equal(t, "admin-1", got.UpdatedBy)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(at))
	require.NotNil(t, got.FraudStatus)
	assert.Equal(t, models.ClassificationFraudulent, got.FraudStatus.Classification)
	assert.Equal(t, 12.34, got.FraudStatus.Score)

	logs, err := db.ListFraudLogs(context.Background(), LogFilter{TransactionID: "txn-1"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "approved", logs[0].Action)
	assert.Nil(t, logs[0].RiskScore)
	assert.Equal(t, "blocked", logs[1].Action)
	require.NotNil(t, logs[1].RiskScore)
	assert.Equal(t, 12.34, *logs[1].RiskScore)
}

func TestUpdateStatus_OverrideSticks(t *testing.T) {
	db := setupTestDB(t)
	insert(t, db, scoredTxn("txn-1", "user-1", t0, models.ClassificationSafe))
	ctx := context.Background()

	_, err := db.UpdateStatus(ctx, StatusUpdate{ID: "txn-1", Status: models.StatusBlocked, Override: true, At: t0},
		models.FraudLog{ID: "l1", TransactionID: "txn-1", UserID: "user-1", Action: "blocked", Timestamp: t0})
	require.NoError(t, err)

	got, err := db.UpdateStatus(ctx, StatusUpdate{ID: "txn-1", Status: models.StatusPending, At: t0},
		models.FraudLog{ID: "l2", TransactionID: "txn-1", UserID: "user-1", Action: "status_changed", Timestamp: t0})
	require.NoError(t, err)
	assert.True(t, got.AdminOverride)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.UpdateStatus(context.Background(), StatusUpdate{ID: "missing", Status: models.StatusBlocked, At: t0},
		models.FraudLog{ID: "l1", TransactionID: "missing", Action: "blocked", Timestamp: t0})
	assert.ErrorIs(t, err, ErrNotFound)

	logs, err := db.ListFraudLogs(context.Background(), LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestListFraudLogs_ByUserWithLimit(t *testing.T) {
	db := setupTestDB(t)
	for i := 0; i < 3; i++ {
		insert(t, db, scoredTxn(fmt.Sprintf("a-%d", i), "user-1", t0.Add(time.Duration(i)*time.Minute), models.ClassificationSafe))
	}
	insert(t, db, scoredTxn("b-0", "user-2", t0, models.ClassificationSafe))

	logs, err := db.ListFraudLogs(context.Background(), LogFilter{UserID: "user-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "a-2", logs[0].TransactionID)
	assert.Equal(t, "a-1", logs[1].TransactionID)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
