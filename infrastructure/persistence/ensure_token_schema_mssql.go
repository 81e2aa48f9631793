package persistence

import (
	"database/sql"
	"fmt"
)

// EnsureTokenSchemaMSSQL creates the credential-store tables for SQL Server
// if they do not exist.
func EnsureTokenSchemaMSSQL(db *sql.DB) error {
	ddls := []string{
		`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.connected_users') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[connected_users] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        fb_id NVARCHAR(128) NOT NULL,
        app_id NVARCHAR(128) NOT NULL,
        app_env NVARCHAR(64) NOT NULL DEFAULT 'production',
        email NVARCHAR(255) NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        is_token_valid BIT NULL,
        has_ads BIT NOT NULL DEFAULT 0,
        token_debug_result NVARCHAR(MAX) NULL,
        created_at DATETIMEOFFSET NOT NULL,
        updated_at DATETIMEOFFSET NOT NULL
    );
    CREATE UNIQUE INDEX UX_connected_users_scope ON dbo.[connected_users](app_id, app_env, fb_id);
END`,
		`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.connected_pages') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[connected_pages] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        app_id BIGINT NOT NULL,
        fb_id NVARCHAR(128) NOT NULL,
        fb_page_id NVARCHAR(128) NOT NULL,
        page_name NVARCHAR(255) NULL,
        page_access_token NVARCHAR(MAX) NULL,
        ig_account_id NVARCHAR(128) NULL,
        has_ig_page BIT NOT NULL DEFAULT 0,
        active BIT NOT NULL DEFAULT 1,
        is_token_valid BIT NULL,
        token_debug_result NVARCHAR(MAX) NULL,
        config_id NVARCHAR(128) NULL,
        created_at DATETIMEOFFSET NOT NULL,
        updated_at DATETIMEOFFSET NOT NULL
    );
    CREATE INDEX IX_connected_pages_page ON dbo.[connected_pages](app_id, fb_page_id);
END`,
		`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.access_tokens') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[access_tokens] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        app_id BIGINT NOT NULL,
        user_id BIGINT NOT NULL,
        fb_id NVARCHAR(128) NOT NULL,
        page_id NVARCHAR(128) NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        access_token_type NVARCHAR(16) NOT NULL,
        page_messaging_enabled BIT NOT NULL DEFAULT 0,
        instagram_messaging_enabled BIT NOT NULL DEFAULT 0,
        ad_permissions_enabled BIT NOT NULL DEFAULT 0,
        status NVARCHAR(32) NOT NULL DEFAULT 'active',
        error_source NVARCHAR(255) NULL,
        expires_at DATETIMEOFFSET NULL,
        token_data_access_expires_at DATETIMEOFFSET NULL,
        scopes NVARCHAR(MAX) NOT NULL DEFAULT '',
        missing_scopes NVARCHAR(MAX) NOT NULL DEFAULT '',
        is_token_valid BIT NULL,
        details NVARCHAR(MAX) NULL,
        created_at DATETIMEOFFSET NOT NULL,
        updated_at DATETIMEOFFSET NOT NULL
    );
    CREATE INDEX IX_access_tokens_page ON dbo.[access_tokens](app_id, page_id, access_token_type);
END`,
		`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.meta_api_call_results') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[meta_api_call_results] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        app_id BIGINT NULL,
        user_id BIGINT NULL,
        fb_id NVARCHAR(128) NULL,
        page_id NVARCHAR(128) NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        access_token_type NVARCHAR(16) NOT NULL,
        success BIT NOT NULL,
        status NVARCHAR(32) NOT NULL,
        req_url NVARCHAR(MAX) NOT NULL,
        req_params NVARCHAR(MAX) NULL,
        res NVARCHAR(MAX) NULL,
        requirement_context NVARCHAR(MAX) NULL,
        error_code NVARCHAR(32) NULL,
        error_message NVARCHAR(MAX) NULL,
        created_at DATETIMEOFFSET NOT NULL
    );
    CREATE INDEX IX_api_call_results_page ON dbo.[meta_api_call_results](page_id, success, created_at DESC);
END`,
		`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.ads') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[ads] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        fb_ad_id NVARCHAR(128) NOT NULL UNIQUE,
        ad_trace_id NVARCHAR(128) NULL,
        user_id BIGINT NOT NULL,
        page_id NVARCHAR(128) NULL,
        status NVARCHAR(64) NULL,
        created_at DATETIMEOFFSET NOT NULL
    );
END`,
	}

	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("ensuring token schema (mssql): %w", err)
		}
	}
	return nil
}
