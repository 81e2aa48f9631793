package configuration

import (
	"fmt"
	"os"
	"strings"
)

// MetaOAuthConfig is the resolved OAuth client used by the account connect
// flow.
type MetaOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// GetMetaOAuthConfig returns the facebook OAuth client configuration with
// environment variable fallback.
func GetMetaOAuthConfig() (*MetaOAuthConfig, error) {
	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	port := C.App.Port
	if port == 0 {
		port = 10001
	}
	defaultRedirect := fmt.Sprintf("%s://localhost:%d/auth/facebook/callback", scheme, port)
	config := &MetaOAuthConfig{
		ClientID:     getConfigValue(C.OAuth.Facebook.ClientID, "META_APP_ID", ""),
		ClientSecret: getConfigValue(C.OAuth.Facebook.ClientSecret, "META_APP_SECRET", ""),
		RedirectURL:  getConfigValue(C.OAuth.Facebook.RedirectURI, "FACEBOOK_REDIRECT_URI", defaultRedirect),
		Scopes:       strings.Split(C.Meta.RequiredScopes, ","),
	}
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("facebook oauth client not configured")
	}
	return config, nil
}

// getConfigValue gets value from config first, then environment variable, then default
func getConfigValue(configValue, envKey, defaultValue string) string {
	// Environment variable takes precedence when provided
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}
