package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"page-token-service/domain/model"
)

func TestResolutionKey(t *testing.T) {
	tests := []struct {
		name string
		req  model.Requirements
		want string
	}{
		{name: "no requirements", req: model.Requirements{}, want: "resolved_token:p1:none"},
		{name: "messaging", req: model.Requirements{NeedsMessaging: true}, want: "resolved_token:p1:m"},
		{name: "instagram", req: model.Requirements{NeedsInstagramMessaging: true}, want: "resolved_token:p1:i"},
		{name: "ads", req: model.Requirements{NeedsAds: true}, want: "resolved_token:p1:a"},
		{name: "all", req: model.Requirements{NeedsMessaging: true, NeedsInstagramMessaging: true, NeedsAds: true}, want: "resolved_token:p1:mia"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolutionKey("p1", tt.req))
		})
	}
}

func TestResolutionKey_ActionDoesNotChangeKey(t *testing.T) {
	with := ResolutionKey("p1", model.Requirements{NeedsMessaging: true, Action: "send_message"})
	without := ResolutionKey("p1", model.Requirements{NeedsMessaging: true})
	assert.Equal(t, without, with)
}

func TestResolutionCache_NilClientMissesSafely(t *testing.T) {
	c := NewResolutionCache(nil)
	ctx := context.Background()

	token, err := c.GetResolvedToken(ctx, "resolved_token:p1:m")
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, c.SetResolvedToken(ctx, "resolved_token:p1:m", "tok123"))
	require.NoError(t, c.InvalidateResolvedTokens(ctx, "p1"))
}
