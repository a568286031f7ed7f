package dto

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewErrorResponse(t *testing.T) {
	got := NewErrorResponse(ErrorCodeStaleContext, "application orders-app is not running").WithTraceID("abc")

	assert.Equal(t, &ErrorResponse{
		Error: ErrorDetail{
			Code:    ErrorCodeStaleContext,
			Message: "application orders-app is not running",
		},
		TraceID: "abc",
	}, got)

	details := map[string]string{"name": "this field is required"}
	withDetails := NewErrorResponseWithDetails(ErrorCodeValidation, "bad", details)
	assert.Equal(t, details, withDetails.Error.Details)
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeStaleContext, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeBadRequest, http.StatusBadRequest},
		{ErrorCodeForbidden, http.StatusForbidden},
		{ErrorCodeUnauthorized, http.StatusUnauthorized},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeSaturated, http.StatusServiceUnavailable},
		{ErrorCodeTimeout, http.StatusGatewayTimeout},
		{ErrorCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromCode(tt.code))
		})
	}
}

func TestPageRequest_GetLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, DefaultLimit},
		{"negative uses default", -3, DefaultLimit},
		{"within bounds", 7, 7},
		{"capped", 500, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PageRequest{Limit: tt.limit}
			assert.Equal(t, tt.want, p.GetLimit())
		})
	}
}

func TestPageRequest_After(t *testing.T) {
	t.Run("first page", func(t *testing.T) {
		after, err := (&PageRequest{}).After()
		require.NoError(t, err)
		assert.Empty(t, after)
	})

	t.Run("round trip", func(t *testing.T) {
		p := &PageRequest{Cursor: EncodeCursor(&Cursor{After: "billing-app"})}

		after, err := p.After()
		require.NoError(t, err)
		assert.Equal(t, "billing-app", after)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := (&PageRequest{Cursor: "%%%"}).After()
		require.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("base64 but not json", func(t *testing.T) {
		_, err := (&PageRequest{Cursor: "bm90LWpzb24="}).After()
		require.ErrorIs(t, err, ErrInvalidCursor)
	})
}

func TestNewPage(t *testing.T) {
	key := func(s string) string { return s }

	t.Run("last page", func(t *testing.T) {
		page := NewPage([]string{"a", "b"}, 2, key)

		assert.Equal(t, []string{"a", "b"}, page.Items)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("more follows", func(t *testing.T) {
		page := NewPage([]string{"a", "b", "c"}, 2, key)

		assert.Equal(t, []string{"a", "b"}, page.Items)
		assert.True(t, page.HasMore)

		c, err := DecodeCursor(page.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, "b", c.After)
	})

	t.Run("nil items encode as empty list", func(t *testing.T) {
		page := NewPage[string](nil, 5, key)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
	})
}

func TestEncodeCursor_Nil(t *testing.T) {
	assert.Empty(t, EncodeCursor(nil))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		wantErr map[string]string
	}{
		{
			name:  "valid application path",
			value: &ApplicationPath{Name: "orders-app"},
		},
		{
			name:    "missing application name",
			value:   &ApplicationPath{},
			wantErr: map[string]string{"Name": "this field is required"},
		},
		{
			name:    "application name with spaces",
			value:   &ApplicationPath{Name: "orders app"},
			wantErr: map[string]string{"Name": "must be a valid application name"},
		},
		{
			name:  "empty realm target",
			value: &RealmsRequest{},
		},
		{
			name:    "bad realm target",
			value:   &RealmsRequest{Target: "../etc"},
			wantErr: map[string]string{"Target": "must be a valid application name"},
		},
		{
			name:    "identity name too long",
			value:   &ProbeRequest{IdentityName: strings.Repeat("x", 65)},
			wantErr: map[string]string{"identityName": "must be at most 64 characters"},
		},
		{
			name:    "limit out of range",
			value:   &PageRequest{Limit: 101},
			wantErr: map[string]string{"Limit": "must be less than or equal to 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.value)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, tt.wantErr, ValidationErrors(err))
		})
	}
}

func TestValidateAll_ReservedProperty(t *testing.T) {
	req := &ProbeRequest{Properties: map[string]string{"mc.identity": "x"}}

	err := ValidateAll(req)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "reserved prefix")
	assert.False(t, IsValidationError(err))

	require.NoError(t, ValidateAll(&ProbeRequest{Properties: map[string]string{"ticket": "42"}}))
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantBinding bool
		wantInvalid bool
	}{
		{name: "valid", body: `{"identityName":"nightly","properties":{"ticket":"42"}}`},
		{name: "malformed json", body: `{"identityName":`, wantBinding: true},
		{name: "invalid field", body: `{"identityName":"` + strings.Repeat("y", 70) + `"}`, wantInvalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req ProbeRequest
			err := BindAndValidate(c, &req)

			switch {
			case tt.wantBinding:
				require.ErrorIs(t, err, ErrBinding)
			case tt.wantInvalid:
				require.ErrorIs(t, err, ErrValidation)
			default:
				require.NoError(t, err)
				assert.Equal(t, "nightly", req.IdentityName)
				assert.Equal(t, "42", req.Properties["ticket"])
			}
		})
	}
}

func TestBindQueryAndValidate(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?target=edge-1", http.NoBody)

	var req RealmsRequest
	require.NoError(t, BindQueryAndValidate(c, &req))
	assert.Equal(t, "edge-1", req.Target)
}

func TestMinMaxMessage(t *testing.T) {
	v := Validator()
	require.NotNil(t, v)
	assert.Same(t, v, Validator())

	type sized struct {
		Count int `json:"count" validate:"min=2"`
	}

	err := Validate(&sized{Count: 1})
	assert.Equal(t, map[string]string{"count": "must be at least 2"}, ValidationErrors(err))
}
