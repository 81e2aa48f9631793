package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureTokenSchema creates the credential-store tables if they are missing.
// Safe to call at startup.
func EnsureTokenSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ddls := []string{
		`CREATE TABLE IF NOT EXISTS connected_users (
			id BIGSERIAL PRIMARY KEY,
			fb_id TEXT NOT NULL,
			app_id TEXT NOT NULL,
			app_env TEXT NOT NULL DEFAULT 'production',
			email TEXT,
			access_token TEXT NOT NULL,
			is_token_valid BOOLEAN,
			has_ads BOOLEAN NOT NULL DEFAULT FALSE,
			token_debug_result JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (app_id, app_env, fb_id)
		)`,
		`CREATE TABLE IF NOT EXISTS connected_pages (
			id BIGSERIAL PRIMARY KEY,
			app_id BIGINT NOT NULL,
			fb_id TEXT NOT NULL,
			fb_page_id TEXT NOT NULL,
			page_name TEXT,
			page_access_token TEXT,
			ig_account_id TEXT,
			has_ig_page BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			is_token_valid BOOLEAN,
			token_debug_result JSONB,
			config_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connected_pages_page ON connected_pages (app_id, fb_page_id)`,
		`CREATE INDEX IF NOT EXISTS idx_connected_pages_ig ON connected_pages (app_id, ig_account_id)`,
		`CREATE TABLE IF NOT EXISTS access_tokens (
			id BIGSERIAL PRIMARY KEY,
			app_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			fb_id TEXT NOT NULL,
			page_id TEXT,
			access_token TEXT NOT NULL,
			access_token_type TEXT NOT NULL,
			page_messaging_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			instagram_messaging_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			ad_permissions_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL DEFAULT 'active',
			error_source TEXT,
			expires_at TIMESTAMPTZ,
			token_data_access_expires_at TIMESTAMPTZ,
			scopes TEXT NOT NULL DEFAULT '',
			missing_scopes TEXT NOT NULL DEFAULT '',
			is_token_valid BOOLEAN,
			details JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_access_tokens_key
			ON access_tokens (app_id, user_id, fb_id, access_token_type, COALESCE(page_id, ''))`,
		`CREATE TABLE IF NOT EXISTS meta_api_call_results (
			id BIGSERIAL PRIMARY KEY,
			app_id BIGINT,
			user_id BIGINT,
			fb_id TEXT,
			page_id TEXT,
			access_token TEXT NOT NULL,
			access_token_type TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			status TEXT NOT NULL,
			req_url TEXT NOT NULL,
			req_params JSONB,
			res JSONB,
			requirement_context JSONB,
			error_code TEXT,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_call_results_page ON meta_api_call_results (page_id, success, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS ads (
			id BIGSERIAL PRIMARY KEY,
			fb_ad_id TEXT NOT NULL UNIQUE,
			ad_trace_id TEXT,
			user_id BIGINT NOT NULL,
			page_id TEXT,
			status TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, ddl := range ddls {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensuring token schema: %w", err)
		}
	}
	return nil
}
