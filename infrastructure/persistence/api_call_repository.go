package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// APICallRepository is the append-only outcome log on PostgreSQL.
type APICallRepository struct {
	db *sql.DB
}

func NewAPICallRepository(db *sql.DB) repository.IAPICall {
	return &APICallRepository{db: db}
}

func (r *APICallRepository) Insert(ctx context.Context, result *model.APICallResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	var reqContext interface{}
	if result.Requirements != nil {
		b, err := json.Marshal(result.Requirements)
		if err != nil {
			return err
		}
		reqContext = b
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meta_api_call_results (app_id, user_id, fb_id, page_id, access_token, access_token_type, success, status, req_url, req_params, res, requirement_context, error_code, error_message, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		result.AppID, result.UserID, result.FbID, result.PageID, result.Token,
		result.TokenType, result.Success, result.Status, result.ReqURL,
		nullJSON(result.ReqParams), nullJSON(result.Res), reqContext,
		result.ErrorCode, result.ErrorMessage, result.CreatedAt)
	return err
}

// LatestSuccess returns the most recent successful call against the page
// whose recorded requirement context covers req.
func (r *APICallRepository) LatestSuccess(ctx context.Context, pageID string, req model.Requirements) (*model.APICallResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, page_id, access_token, access_token_type, success, status, req_url, requirement_context, created_at
		 FROM meta_api_call_results
		 WHERE page_id=$1 AND success=TRUE
		   AND ($2 = FALSE OR requirement_context->>'needsMessaging' = 'true')
		   AND ($3 = FALSE OR requirement_context->>'needsInstagramMessaging' = 'true')
		   AND ($4 = FALSE OR requirement_context->>'needsAds' = 'true')
		 ORDER BY created_at DESC LIMIT 1`,
		pageID, req.NeedsMessaging, req.NeedsInstagramMessaging, req.NeedsAds)

	result := &model.APICallResult{}
	var resultPageID sql.NullString
	var reqContext []byte
	if err := row.Scan(&result.ID, &resultPageID, &result.Token, &result.TokenType,
		&result.Success, &result.Status, &result.ReqURL, &reqContext, &result.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if resultPageID.Valid {
		result.PageID = &resultPageID.String
	}
	if len(reqContext) > 0 {
		var recorded model.Requirements
		if err := json.Unmarshal(reqContext, &recorded); err == nil {
			result.Requirements = &recorded
		}
	}
	return result, nil
}
