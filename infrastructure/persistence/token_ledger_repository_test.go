package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"page-token-service/domain/model"
)

func ledgerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "app_id", "user_id", "fb_id", "page_id", "access_token",
		"access_token_type", "page_messaging_enabled", "instagram_messaging_enabled",
		"ad_permissions_enabled", "status", "error_source", "expires_at",
		"token_data_access_expires_at", "scopes", "missing_scopes",
		"is_token_valid", "details", "created_at", "updated_at",
	})
}

func TestTokenLedgerRepository_FindValidPageTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewTokenLedgerRepository(db)
	now := time.Now().UTC()
	expires := now.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+ledgerColumns+` FROM access_tokens WHERE app_id=$1 AND page_id=$2 AND access_token_type=$3 AND is_token_valid=TRUE ORDER BY updated_at DESC`)).
		WithArgs(int64(777), "p1", model.TokenTypePage).
		WillReturnRows(ledgerRows().
			AddRow(int64(1), int64(777), int64(1), "fb-1", "p1", "tok123", "page",
				true, false, false, "active", nil, expires, expires,
				"pages_messaging", "", true, []byte(`{"isValid":true}`), now, now))

	entries, err := repository.FindValidPageTokens(context.Background(), 777, "p1")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Equal(t, "tok123", entry.Token)
	require.Equal(t, model.TokenTypePage, entry.TokenType)
	require.True(t, entry.MessagingEnabled)
	require.NotNil(t, entry.PageID)
	require.Equal(t, "p1", *entry.PageID)
	require.NotNil(t, entry.IsTokenValid)
	require.True(t, *entry.IsTokenValid)
	require.NotNil(t, entry.ExpiresAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenLedgerRepository_Upsert_InsertsWhenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewTokenLedgerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM access_tokens WHERE app_id=$1 AND user_id=$2 AND fb_id=$3 AND access_token_type=$4 AND COALESCE(page_id,'') = COALESCE($5,'')`)).
		WithArgs(int64(777), int64(1), "fb-1", "page", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO access_tokens`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	pageID := "p1"
	valid := true
	entry := &model.AccessToken{
		AppID:            777,
		UserID:           1,
		FbID:             "fb-1",
		PageID:           &pageID,
		Token:            "tok123",
		TokenType:        model.TokenTypePage,
		MessagingEnabled: true,
		Status:           model.TokenStatusActive,
		IsTokenValid:     &valid,
	}
	err = repository.Upsert(context.Background(), entry)

	require.NoError(t, err)
	require.Equal(t, int64(7), entry.ID)
	// Zero expiry timestamps get the long-lived fallback applied.
	require.NotNil(t, entry.ExpiresAt)
	require.NotNil(t, entry.DataAccessExpiresAt)
	require.True(t, entry.ExpiresAt.After(time.Now().Add(89*24*time.Hour)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenLedgerRepository_Upsert_UpdatesExistingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewTokenLedgerRepository(db)

	// User-token rows carry no page id; the COALESCE key still matches.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM access_tokens`)).
		WithArgs(int64(777), int64(1), "fb-1", "user", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE access_tokens SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	valid := false
	entry := &model.AccessToken{
		AppID:        777,
		UserID:       1,
		FbID:         "fb-1",
		Token:        "user-tok",
		TokenType:    model.TokenTypeUser,
		Status:       model.TokenStatusError,
		IsTokenValid: &valid,
	}
	err = repository.Upsert(context.Background(), entry)

	require.NoError(t, err)
	require.Equal(t, int64(3), entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenLedgerRepository_SetValidityByToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewTokenLedgerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE access_tokens SET is_token_valid=$1, updated_at=$2 WHERE access_token=$3`)).
		WithArgs(false, sqlmock.AnyArg(), "tokBad").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.SetValidityByToken(context.Background(), "tokBad", false)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
