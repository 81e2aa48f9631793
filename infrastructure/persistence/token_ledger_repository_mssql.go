package persistence

import (
	"context"
	"database/sql"
	"time"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// TokenLedgerRepositoryMSSQL persists token health entries on SQL Server.
type TokenLedgerRepositoryMSSQL struct {
	db *sql.DB
}

func NewTokenLedgerRepositoryMSSQL(db *sql.DB) repository.ITokenLedger {
	return &TokenLedgerRepositoryMSSQL{db: db}
}

func (r *TokenLedgerRepositoryMSSQL) Upsert(ctx context.Context, entry *model.AccessToken) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.ExpiresAt == nil {
		fallback := now.Add(tokenFallbackTTL)
		entry.ExpiresAt = &fallback
	}
	if entry.DataAccessExpiresAt == nil {
		fallback := now.Add(tokenFallbackTTL)
		entry.DataAccessExpiresAt = &fallback
	}

	var pageID sql.NullString
	if entry.PageID != nil {
		pageID = sql.NullString{String: *entry.PageID, Valid: true}
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 id FROM dbo.[access_tokens] WHERE app_id=@p1 AND user_id=@p2 AND fb_id=@p3 AND access_token_type=@p4 AND ISNULL(page_id,'') = ISNULL(@p5,'')`,
		entry.AppID, entry.UserID, entry.FbID, entry.TokenType, pageID)
	var existingID int64
	err := row.Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		return r.db.QueryRowContext(ctx,
			`INSERT INTO dbo.[access_tokens] (app_id, user_id, fb_id, page_id, access_token, access_token_type, page_messaging_enabled, instagram_messaging_enabled, ad_permissions_enabled, status, error_source, expires_at, token_data_access_expires_at, scopes, missing_scopes, is_token_valid, details, created_at, updated_at)
			 OUTPUT INSERTED.id
			 VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13,@p14,@p15,@p16,@p17,@p18,@p19)`,
			entry.AppID, entry.UserID, entry.FbID, pageID, entry.Token, entry.TokenType,
			entry.MessagingEnabled, entry.InstagramEnabled, entry.AdsEnabled,
			entry.Status, entry.ErrorSource, entry.ExpiresAt, entry.DataAccessExpiresAt,
			entry.Scopes, entry.MissingScopes, entry.IsTokenValid, nullJSONString(entry.Details),
			entry.CreatedAt, entry.UpdatedAt).Scan(&entry.ID)
	case err != nil:
		return err
	default:
		entry.ID = existingID
		_, err = r.db.ExecContext(ctx,
			`UPDATE dbo.[access_tokens] SET access_token=@p1, page_messaging_enabled=@p2, instagram_messaging_enabled=@p3, ad_permissions_enabled=@p4, status=@p5, error_source=@p6, expires_at=@p7, token_data_access_expires_at=@p8, scopes=@p9, missing_scopes=@p10, is_token_valid=@p11, details=@p12, updated_at=@p13 WHERE id=@p14`,
			entry.Token, entry.MessagingEnabled, entry.InstagramEnabled, entry.AdsEnabled,
			entry.Status, entry.ErrorSource, entry.ExpiresAt, entry.DataAccessExpiresAt,
			entry.Scopes, entry.MissingScopes, entry.IsTokenValid, nullJSONString(entry.Details),
			entry.UpdatedAt, existingID)
		return err
	}
}

func (r *TokenLedgerRepositoryMSSQL) FindValidPageTokens(ctx context.Context, appID int64, pageID string) ([]*model.AccessToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM dbo.[access_tokens] WHERE app_id=@p1 AND page_id=@p2 AND access_token_type=@p3 AND is_token_valid=1 ORDER BY updated_at DESC`,
		appID, pageID, model.TokenTypePage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.AccessToken
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *TokenLedgerRepositoryMSSQL) SetValidityByToken(ctx context.Context, token string, valid bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[access_tokens] SET is_token_valid=@p1, updated_at=@p2 WHERE access_token=@p3`,
		valid, time.Now().UTC(), token)
	return err
}
