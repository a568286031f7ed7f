package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http/dto"
	"github.com/jsamuelsen/managed-concurrency/internal/app"
	"github.com/jsamuelsen/managed-concurrency/internal/domain"
)

func TestRealmsHandler_List(t *testing.T) {
	svc := app.NewRealmService(app.Topology{
		DefaultConfig: "server-config",
		Configs: []domain.ServerConfig{
			{Name: "server-config", AuthRealms: []domain.AuthRealm{{Name: "admin-realm"}, {Name: "file"}}},
			{Name: "edge-config", AuthRealms: []domain.AuthRealm{{Name: "ldap"}}},
		},
		Servers: []domain.ServerRef{
			{Name: "edge-1", ConfigRef: "edge-config"},
			{Name: "broken", ConfigRef: "missing"},
		},
	}, nil)

	router := gin.New()
	router.GET("/api/v1/realms", NewRealmsHandler(svc).List)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       dto.RealmsResponse
		wantCode   string
	}{
		{
			name:       "default target",
			wantStatus: http.StatusOK,
			want:       dto.RealmsResponse{Target: app.DefaultTarget, Config: "server-config", Realms: []string{"admin-realm", "file"}},
		},
		{
			name:       "server target",
			query:      "?target=edge-1",
			wantStatus: http.StatusOK,
			want:       dto.RealmsResponse{Target: "edge-1", Config: "edge-config", Realms: []string{"ldap"}},
		},
		{
			name:       "dangling config ref",
			query:      "?target=broken",
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrorCodeNotFound,
		},
		{
			name:       "invalid target",
			query:      "?target=a%20b",
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrorCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/realms"+tt.query, http.NoBody))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[dto.ErrorResponse](t, w).Error.Code)
				return
			}

			assert.Equal(t, tt.want, decode[dto.RealmsResponse](t, w))
		})
	}
}
