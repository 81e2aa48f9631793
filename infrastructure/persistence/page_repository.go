package persistence

import (
	"context"
	"database/sql"
	"time"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// PageRepository implements page persistence on PostgreSQL.
type PageRepository struct {
	db *sql.DB
}

func NewPageRepository(db *sql.DB) repository.IPage {
	return &PageRepository{db: db}
}

const pageColumns = `id, app_id, fb_id, fb_page_id, page_name, page_access_token, ig_account_id, has_ig_page, active, is_token_valid, token_debug_result, config_id, created_at, updated_at`

// FindByIdentifier matches either the platform page id or a linked IG
// account id within the app scope.
func (r *PageRepository) FindByIdentifier(ctx context.Context, appID int64, identifier string, activeOnly bool) ([]*model.Page, error) {
	q := `SELECT ` + pageColumns + ` FROM connected_pages WHERE app_id=$1 AND (fb_page_id=$2 OR ig_account_id=$2)`
	if activeOnly {
		q += ` AND active=TRUE`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, appID, identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*model.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// MostRecentToken returns the newest on-file token for a page regardless of
// validity.
func (r *PageRepository) MostRecentToken(ctx context.Context, appID int64, pageID string) (string, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT page_access_token FROM connected_pages WHERE app_id=$1 AND (fb_page_id=$2 OR ig_account_id=$2) AND page_access_token IS NOT NULL ORDER BY created_at DESC LIMIT 1`,
		appID, pageID)
	var token sql.NullString
	if err := row.Scan(&token); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return token.String, nil
}

func (r *PageRepository) UpdateAccessToken(ctx context.Context, pageDBID int64, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE connected_pages SET page_access_token=$1, updated_at=$2 WHERE id=$3`,
		token, time.Now().UTC(), pageDBID)
	return err
}

// SetTokenValidityByToken flips is_token_valid on every page row holding the
// token; the match count lets the caller fall through to user tokens.
func (r *PageRepository) SetTokenValidityByToken(ctx context.Context, token string, valid bool) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connected_pages SET is_token_valid=$1, updated_at=$2 WHERE page_access_token=$3`,
		valid, time.Now().UTC(), token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PageRepository) SetTokenValidity(ctx context.Context, pageDBID int64, valid bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE connected_pages SET is_token_valid=$1, updated_at=$2 WHERE id=$3`,
		valid, time.Now().UTC(), pageDBID)
	return err
}

func (r *PageRepository) Upsert(ctx context.Context, page *model.Page) error {
	now := time.Now().UTC()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now
	// One row per (app scope, owner, page); newest connect wins the token.
	row := r.db.QueryRowContext(ctx,
		`SELECT id FROM connected_pages WHERE app_id=$1 AND fb_id=$2 AND fb_page_id=$3 ORDER BY created_at DESC LIMIT 1`,
		page.AppID, page.OwnerFbID, page.PageID)
	var existingID int64
	err := row.Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		return r.db.QueryRowContext(ctx,
			`INSERT INTO connected_pages (app_id, fb_id, fb_page_id, page_name, page_access_token, ig_account_id, has_ig_page, active, is_token_valid, token_debug_result, config_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
			page.AppID, page.OwnerFbID, page.PageID, page.Name, nullString(page.AccessToken),
			page.IGAccountID, page.HasIGAccount, page.Active, page.IsTokenValid,
			nullJSON(page.TokenDebug), page.ConfigID, page.CreatedAt, page.UpdatedAt).Scan(&page.ID)
	case err != nil:
		return err
	default:
		page.ID = existingID
		_, err = r.db.ExecContext(ctx,
			`UPDATE connected_pages SET page_name=$1, page_access_token=$2, ig_account_id=$3, has_ig_page=$4, active=$5, is_token_valid=$6, token_debug_result=$7, updated_at=$8 WHERE id=$9`,
			page.Name, nullString(page.AccessToken), page.IGAccountID, page.HasIGAccount,
			page.Active, page.IsTokenValid, nullJSON(page.TokenDebug), page.UpdatedAt, existingID)
		return err
	}
}

// ActivateBestConfig keeps the newest row per (owner, page) active and
// deactivates older duplicates.
func (r *PageRepository) ActivateBestConfig(ctx context.Context, appID int64, pageID string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE connected_pages SET active = (id = best.keep_id), updated_at = $3
		FROM (
			SELECT fb_id, MAX(id) AS keep_id FROM connected_pages
			WHERE app_id=$1 AND fb_page_id=$2 GROUP BY fb_id
		) best
		WHERE connected_pages.app_id=$1 AND connected_pages.fb_page_id=$2 AND connected_pages.fb_id=best.fb_id`,
		appID, pageID, now)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (*model.Page, error) {
	page := &model.Page{}
	var name, token, igID, configID sql.NullString
	var valid sql.NullBool
	var debug []byte
	if err := row.Scan(&page.ID, &page.AppID, &page.OwnerFbID, &page.PageID, &name, &token,
		&igID, &page.HasIGAccount, &page.Active, &valid, &debug, &configID,
		&page.CreatedAt, &page.UpdatedAt); err != nil {
		return nil, err
	}
	page.Name = name.String
	page.AccessToken = token.String
	if igID.Valid {
		page.IGAccountID = &igID.String
	}
	if configID.Valid {
		page.ConfigID = &configID.String
	}
	if valid.Valid {
		page.IsTokenValid = &valid.Bool
	}
	if len(debug) > 0 {
		page.TokenDebug = debug
	}
	return page, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
