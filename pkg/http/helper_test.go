package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		role     string
		wantRole model.Role
		wantErr  bool
	}{
		{"default role", "u-1", "", model.RoleUser, false},
		{"owner", "o-1", "owner", model.RoleOwner, false},
		{"admin", "a-1", "admin", model.RoleAdmin, false},
		{"unknown role", "u-1", "root", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(HeaderUserID, tt.userID)
			r.Header.Set(HeaderRole, tt.role)

			id, err := IdentityFromRequest(r)
			if tt.wantErr {
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.userID, id.UserID)
			assert.Equal(t, tt.wantRole, id.Role)
		})
	}
}

func TestRequireIdentity_MissingUser(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := RequireIdentity(r)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode())
}

func TestExtractLimitOffset(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&offset=20", nil)
	limit, offset, err := ExtractLimitOffset(r)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)
	assert.Equal(t, int64(20), offset)

	r = httptest.NewRequest(http.MethodGet, "/?offset=-3", nil)
	limit, offset, err = ExtractLimitOffset(r)
	require.NoError(t, err)
	assert.Equal(t, config.NormalizePaginationLimit(0), limit)
	assert.Zero(t, offset)

	r = httptest.NewRequest(http.MethodGet, "/?limit=ten", nil)
	_, _, err = ExtractLimitOffset(r)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestParseTimeParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?from=2030-01-02T09:00:00Z&to=yesterday", nil)
	q := r.URL.Query()

	from, err := ParseTimeParam(q, "from")
	require.NoError(t, err)
	require.NotNil(t, from)
	assert.Equal(t, 9, from.Hour())

	missing, err := ParseTimeParam(q, "start")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseTimeParam(q, "to")
	assert.Error(t, err)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteError(w, apperrors.New("SLOT_UNAVAILABLE", "taken", http.StatusConflict)))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":"SLOT_UNAVAILABLE","message":"taken"}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteError(w, errors.New("db exploded")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db exploded")
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, "a", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.True(t, apperrors.HasCode(DecodeJSON(r, &v), apperrors.CodeInvalidInput))
}
