package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/model"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

// Identity is the caller as asserted by the gateway in front of the service.
type Identity struct {
	UserID string
	Role   model.Role
}

// IdentityFromRequest reads the identity headers. A missing role means a
// plain user; an unknown role is rejected.
func IdentityFromRequest(r *http.Request) (Identity, error) {
	id := Identity{
		UserID: r.Header.Get(HeaderUserID),
		Role:   model.Role(r.Header.Get(HeaderRole)),
	}

	switch id.Role {
	case "":
		id.Role = model.RoleUser
	case model.RoleUser, model.RoleOwner, model.RoleAdmin:
	default:
		return Identity{}, apperrors.InvalidInput("unknown role: " + string(id.Role))
	}
	return id, nil
}

// RequireIdentity is IdentityFromRequest plus a mandatory user id.
func RequireIdentity(r *http.Request) (Identity, error) {
	id, err := IdentityFromRequest(r)
	if err != nil {
		return Identity{}, err
	}
	if id.UserID == "" {
		return Identity{}, apperrors.Unauthorized("missing " + HeaderUserID + " header")
	}
	return id, nil
}

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ParseTimeParam reads an optional RFC3339 query parameter.
func ParseTimeParam(query url.Values, name string) (*time.Time, error) {
	s := query.Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " format, must be RFC3339")
	}
	return &t, nil
}

// DecodeJSON decodes the request body into v. An oversized body is reported
// as such rather than as malformed JSON.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.New(apperrors.CodeBadRequest, "request body too large", http.StatusRequestEntityTooLarge)
		}
		return apperrors.InvalidInput("Invalid request body")
	}
	return nil
}
