package persistence

import (
	"context"
	"database/sql"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// AdRepositoryMSSQL looks up ads on SQL Server.
type AdRepositoryMSSQL struct {
	db *sql.DB
}

func NewAdRepositoryMSSQL(db *sql.DB) repository.IAd {
	return &AdRepositoryMSSQL{db: db}
}

func (r *AdRepositoryMSSQL) FindByIDOrTraceID(ctx context.Context, identifier string) (*model.Ad, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 id, fb_ad_id, ad_trace_id, user_id, page_id, status, created_at
		 FROM dbo.[ads] WHERE fb_ad_id=@p1 OR ad_trace_id=@p1 ORDER BY created_at DESC`,
		identifier)

	ad := &model.Ad{}
	var traceID, pageID, status sql.NullString
	if err := row.Scan(&ad.ID, &ad.FbAdID, &traceID, &ad.UserID, &pageID, &status, &ad.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if traceID.Valid {
		ad.AdTraceID = &traceID.String
	}
	if pageID.Valid {
		ad.PageID = &pageID.String
	}
	if status.Valid {
		ad.Status = &status.String
	}
	return ad, nil
}
