package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

func TestParseListParams(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=25&offset=50&order_list=desc_username", nil)

	params, err := ParseListParams(req, "id", "username")
	require.NoError(t, err)
	assert.Equal(t, 25, params.Limit)
	assert.Equal(t, 50, params.Offset)
	assert.Equal(t, "username", params.OrderBy)
	assert.True(t, params.Desc)
}

func TestParseListParamsDefaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)

	params, err := ParseListParams(req, "id")
	require.NoError(t, err)
	assert.Equal(t, ListParams{}, params)
}

func TestParseListParamsOrderColumnWithUnderscore(t *testing.T) {
	req := httptest.NewRequest("GET", "/?order_list=asc_permission_key", nil)

	params, err := ParseListParams(req, "permission_key")
	require.NoError(t, err)
	assert.Equal(t, "permission_key", params.OrderBy)
	assert.False(t, params.Desc)
}

func TestParseListParamsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"negative limit":    "/?limit=-1",
		"non-numeric limit": "/?limit=ten",
		"negative offset":   "/?offset=-5",
		"missing direction": "/?order_list=username",
		"unknown direction": "/?order_list=up_username",
		"unlisted column":   "/?order_list=asc_hashed_password",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", target, nil)
			_, err := ParseListParams(req, "id", "username")
			assert.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
}

func TestSetTotalCount(t *testing.T) {
	res := httptest.NewRecorder()
	SetTotalCount(res, 1234)
	assert.Equal(t, "1234", res.Header().Get("X-Total-Count"))
}
