package configuration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationDefaults(t *testing.T) {
	t.Run("meta_defaults", func(t *testing.T) {
		c := Config{}
		initMeta(&c)
		require.Equal(t, "v19.0", c.Meta.GraphVersion)
		require.Equal(t, 25, c.Meta.AccountsPageLimit)
		require.Contains(t, c.Meta.RequiredScopes, "pages_messaging")
		require.Contains(t, c.Meta.RequiredScopes, "instagram_manage_messages")
		require.Contains(t, c.Meta.RequiredScopes, "ads_management")
	})

	t.Run("database_vendor_defaults_to_psql", func(t *testing.T) {
		c := Config{}
		initDatabase(&c)
		require.Equal(t, "psql", c.Database.Vendor)
	})

	t.Run("app_port_defaults", func(t *testing.T) {
		c := Config{}
		initApp(&c)
		require.Equal(t, 10001, c.App.Port)
	})
}
