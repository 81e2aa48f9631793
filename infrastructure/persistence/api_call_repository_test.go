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

func TestAPICallRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewAPICallRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO meta_api_call_results`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appID := int64(777)
	pageID := "p1"
	result := &model.APICallResult{
		AppID:        &appID,
		PageID:       &pageID,
		Token:        "tok123",
		TokenType:    model.TokenTypePage,
		Success:      true,
		Status:       "ok",
		ReqURL:       "/p1/messages",
		Requirements: &model.Requirements{NeedsMessaging: true, Action: "send_message"},
	}
	err = repository.Insert(context.Background(), result)

	require.NoError(t, err)
	require.False(t, result.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAPICallRepository_LatestSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewAPICallRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM meta_api_call_results`)).
		WithArgs("p1", true, false, false).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "page_id", "access_token", "access_token_type", "success",
			"status", "req_url", "requirement_context", "created_at",
		}).AddRow(int64(9), "p1", "tok123", "page", true, "ok", "/p1/messages",
			[]byte(`{"needsMessaging":true,"action":"send_message"}`), now))

	result, err := repository.LatestSuccess(context.Background(), "p1", model.Requirements{NeedsMessaging: true})

	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "tok123", result.Token)
	require.True(t, result.Success)
	require.NotNil(t, result.Requirements)
	require.True(t, result.Requirements.NeedsMessaging)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAPICallRepository_LatestSuccess_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewAPICallRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM meta_api_call_results`)).
		WithArgs("p-quiet", false, false, false).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "page_id", "access_token", "access_token_type", "success",
			"status", "req_url", "requirement_context", "created_at",
		}))

	result, err := repository.LatestSuccess(context.Background(), "p-quiet", model.Requirements{})

	require.NoError(t, err)
	require.Nil(t, result)
}
