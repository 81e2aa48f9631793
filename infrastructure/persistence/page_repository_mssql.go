package persistence

import (
	"context"
	"database/sql"
	"time"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// PageRepositoryMSSQL implements page persistence on SQL Server.
type PageRepositoryMSSQL struct {
	db *sql.DB
}

func NewPageRepositoryMSSQL(db *sql.DB) repository.IPage {
	return &PageRepositoryMSSQL{db: db}
}

func (r *PageRepositoryMSSQL) FindByIdentifier(ctx context.Context, appID int64, identifier string, activeOnly bool) ([]*model.Page, error) {
	q := `SELECT ` + pageColumns + ` FROM dbo.[connected_pages] WHERE app_id=@p1 AND (fb_page_id=@p2 OR ig_account_id=@p2)`
	if activeOnly {
		q += ` AND active=1`
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

func (r *PageRepositoryMSSQL) MostRecentToken(ctx context.Context, appID int64, pageID string) (string, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 page_access_token FROM dbo.[connected_pages] WHERE app_id=@p1 AND (fb_page_id=@p2 OR ig_account_id=@p2) AND page_access_token IS NOT NULL ORDER BY created_at DESC`,
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

func (r *PageRepositoryMSSQL) UpdateAccessToken(ctx context.Context, pageDBID int64, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[connected_pages] SET page_access_token=@p1, updated_at=@p2 WHERE id=@p3`,
		token, time.Now().UTC(), pageDBID)
	return err
}

func (r *PageRepositoryMSSQL) SetTokenValidityByToken(ctx context.Context, token string, valid bool) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[connected_pages] SET is_token_valid=@p1, updated_at=@p2 WHERE page_access_token=@p3`,
		valid, time.Now().UTC(), token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PageRepositoryMSSQL) SetTokenValidity(ctx context.Context, pageDBID int64, valid bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[connected_pages] SET is_token_valid=@p1, updated_at=@p2 WHERE id=@p3`,
		valid, time.Now().UTC(), pageDBID)
	return err
}

func (r *PageRepositoryMSSQL) Upsert(ctx context.Context, page *model.Page) error {
	now := time.Now().UTC()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 id FROM dbo.[connected_pages] WHERE app_id=@p1 AND fb_id=@p2 AND fb_page_id=@p3 ORDER BY created_at DESC`,
		page.AppID, page.OwnerFbID, page.PageID)
	var existingID int64
	err := row.Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		return r.db.QueryRowContext(ctx,
			`INSERT INTO dbo.[connected_pages] (app_id, fb_id, fb_page_id, page_name, page_access_token, ig_account_id, has_ig_page, active, is_token_valid, token_debug_result, config_id, created_at, updated_at)
			 OUTPUT INSERTED.id
			 VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13)`,
			page.AppID, page.OwnerFbID, page.PageID, page.Name, nullString(page.AccessToken),
			page.IGAccountID, page.HasIGAccount, page.Active, page.IsTokenValid,
			nullJSONString(page.TokenDebug), page.ConfigID, page.CreatedAt, page.UpdatedAt).Scan(&page.ID)
	case err != nil:
		return err
	default:
		page.ID = existingID
		_, err = r.db.ExecContext(ctx,
			`UPDATE dbo.[connected_pages] SET page_name=@p1, page_access_token=@p2, ig_account_id=@p3, has_ig_page=@p4, active=@p5, is_token_valid=@p6, token_debug_result=@p7, updated_at=@p8 WHERE id=@p9`,
			page.Name, nullString(page.AccessToken), page.IGAccountID, page.HasIGAccount,
			page.Active, page.IsTokenValid, nullJSONString(page.TokenDebug), page.UpdatedAt, existingID)
		return err
	}
}

func (r *PageRepositoryMSSQL) ActivateBestConfig(ctx context.Context, appID int64, pageID string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE p SET p.active = CASE WHEN p.id = best.keep_id THEN 1 ELSE 0 END, p.updated_at = @p3
		FROM dbo.[connected_pages] p
		JOIN (
			SELECT fb_id, MAX(id) AS keep_id FROM dbo.[connected_pages]
			WHERE app_id=@p1 AND fb_page_id=@p2 GROUP BY fb_id
		) best ON p.fb_id = best.fb_id
		WHERE p.app_id=@p1 AND p.fb_page_id=@p2`,
		appID, pageID, now)
	return err
}

// nullJSONString stores JSON payloads as NVARCHAR for the SQL Server driver.
func nullJSONString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
