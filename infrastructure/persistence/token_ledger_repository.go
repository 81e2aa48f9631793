package persistence

import (
	"context"
	"database/sql"
	"time"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// TokenLedgerRepository persists token health entries on PostgreSQL.
type TokenLedgerRepository struct {
	db *sql.DB
}

func NewTokenLedgerRepository(db *sql.DB) repository.ITokenLedger {
	return &TokenLedgerRepository{db: db}
}

const ledgerColumns = `id, app_id, user_id, fb_id, page_id, access_token, access_token_type, page_messaging_enabled, instagram_messaging_enabled, ad_permissions_enabled, status, error_source, expires_at, token_data_access_expires_at, scopes, missing_scopes, is_token_valid, details, created_at, updated_at`

// tokenFallbackTTL stands in for expiry timestamps the platform reports as
// zero (long-lived tokens).
const tokenFallbackTTL = 90 * 24 * time.Hour

// Upsert inserts or updates the entry keyed on
// (app_id, user_id, fb_id, access_token_type, page_id).
func (r *TokenLedgerRepository) Upsert(ctx context.Context, entry *model.AccessToken) error {
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

	var pageID interface{}
	if entry.PageID != nil {
		pageID = *entry.PageID
	}

	// Find-then-write keeps user rows (page_id NULL) on the same key as the
	// unique COALESCE index.
	row := r.db.QueryRowContext(ctx,
		`SELECT id FROM access_tokens WHERE app_id=$1 AND user_id=$2 AND fb_id=$3 AND access_token_type=$4 AND COALESCE(page_id,'') = COALESCE($5,'')`,
		entry.AppID, entry.UserID, entry.FbID, entry.TokenType, pageID)
	var existingID int64
	err := row.Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		return r.db.QueryRowContext(ctx,
			`INSERT INTO access_tokens (app_id, user_id, fb_id, page_id, access_token, access_token_type, page_messaging_enabled, instagram_messaging_enabled, ad_permissions_enabled, status, error_source, expires_at, token_data_access_expires_at, scopes, missing_scopes, is_token_valid, details, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19) RETURNING id`,
			entry.AppID, entry.UserID, entry.FbID, pageID, entry.Token, entry.TokenType,
			entry.MessagingEnabled, entry.InstagramEnabled, entry.AdsEnabled,
			entry.Status, entry.ErrorSource, entry.ExpiresAt, entry.DataAccessExpiresAt,
			entry.Scopes, entry.MissingScopes, entry.IsTokenValid, nullJSON(entry.Details),
			entry.CreatedAt, entry.UpdatedAt).Scan(&entry.ID)
	case err != nil:
		return err
	default:
		entry.ID = existingID
		_, err = r.db.ExecContext(ctx,
			`UPDATE access_tokens SET access_token=$1, page_messaging_enabled=$2, instagram_messaging_enabled=$3, ad_permissions_enabled=$4, status=$5, error_source=$6, expires_at=$7, token_data_access_expires_at=$8, scopes=$9, missing_scopes=$10, is_token_valid=$11, details=$12, updated_at=$13 WHERE id=$14`,
			entry.Token, entry.MessagingEnabled, entry.InstagramEnabled, entry.AdsEnabled,
			entry.Status, entry.ErrorSource, entry.ExpiresAt, entry.DataAccessExpiresAt,
			entry.Scopes, entry.MissingScopes, entry.IsTokenValid, nullJSON(entry.Details),
			entry.UpdatedAt, existingID)
		return err
	}
}

// FindValidPageTokens returns page-token entries still marked valid, newest
// first.
func (r *TokenLedgerRepository) FindValidPageTokens(ctx context.Context, appID int64, pageID string) ([]*model.AccessToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM access_tokens WHERE app_id=$1 AND page_id=$2 AND access_token_type=$3 AND is_token_valid=TRUE ORDER BY updated_at DESC`,
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

func (r *TokenLedgerRepository) SetValidityByToken(ctx context.Context, token string, valid bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET is_token_valid=$1, updated_at=$2 WHERE access_token=$3`,
		valid, time.Now().UTC(), token)
	return err
}

func scanLedgerEntry(row rowScanner) (*model.AccessToken, error) {
	entry := &model.AccessToken{}
	var pageID, errorSource sql.NullString
	var expiresAt, dataExpiresAt sql.NullTime
	var valid sql.NullBool
	var details []byte
	if err := row.Scan(&entry.ID, &entry.AppID, &entry.UserID, &entry.FbID, &pageID,
		&entry.Token, &entry.TokenType, &entry.MessagingEnabled, &entry.InstagramEnabled,
		&entry.AdsEnabled, &entry.Status, &errorSource, &expiresAt, &dataExpiresAt,
		&entry.Scopes, &entry.MissingScopes, &valid, &details,
		&entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	if pageID.Valid {
		entry.PageID = &pageID.String
	}
	if errorSource.Valid {
		entry.ErrorSource = &errorSource.String
	}
	if expiresAt.Valid {
		entry.ExpiresAt = &expiresAt.Time
	}
	if dataExpiresAt.Valid {
		entry.DataAccessExpiresAt = &dataExpiresAt.Time
	}
	if valid.Valid {
		entry.IsTokenValid = &valid.Bool
	}
	if len(details) > 0 {
		entry.Details = details
	}
	return entry, nil
}
