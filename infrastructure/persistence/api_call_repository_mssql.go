package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// APICallRepositoryMSSQL is the append-only outcome log on SQL Server.
type APICallRepositoryMSSQL struct {
	db *sql.DB
}

func NewAPICallRepositoryMSSQL(db *sql.DB) repository.IAPICall {
	return &APICallRepositoryMSSQL{db: db}
}

func (r *APICallRepositoryMSSQL) Insert(ctx context.Context, result *model.APICallResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	var reqContext sql.NullString
	if result.Requirements != nil {
		b, err := json.Marshal(result.Requirements)
		if err != nil {
			return err
		}
		reqContext = sql.NullString{String: string(b), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dbo.[meta_api_call_results] (app_id, user_id, fb_id, page_id, access_token, access_token_type, success, status, req_url, req_params, res, requirement_context, error_code, error_message, created_at)
		 VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13,@p14,@p15)`,
		result.AppID, result.UserID, result.FbID, result.PageID, result.Token,
		result.TokenType, result.Success, result.Status, result.ReqURL,
		nullJSONString(result.ReqParams), nullJSONString(result.Res), reqContext,
		result.ErrorCode, result.ErrorMessage, result.CreatedAt)
	return err
}

func (r *APICallRepositoryMSSQL) LatestSuccess(ctx context.Context, pageID string, req model.Requirements) (*model.APICallResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 id, page_id, access_token, access_token_type, success, status, req_url, requirement_context, created_at
		 FROM dbo.[meta_api_call_results]
		 WHERE page_id=@p1 AND success=1
		   AND (@p2 = 0 OR JSON_VALUE(requirement_context, '$.needsMessaging') = 'true')
		   AND (@p3 = 0 OR JSON_VALUE(requirement_context, '$.needsInstagramMessaging') = 'true')
		   AND (@p4 = 0 OR JSON_VALUE(requirement_context, '$.needsAds') = 'true')
		 ORDER BY created_at DESC`,
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
