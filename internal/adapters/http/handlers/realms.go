package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http/dto"
	"github.com/jsamuelsen/managed-concurrency/internal/app"
)

// RealmLister resolves a target to its auth realms.
type RealmLister interface {
	ListAuthRealms(ctx context.Context, target string) (*app.RealmReport, error)
}

// RealmsHandler serves GET /api/v1/realms.
type RealmsHandler struct {
	realms RealmLister
}

// NewRealmsHandler creates a realms handler.
func NewRealmsHandler(realms RealmLister) *RealmsHandler {
	return &RealmsHandler{realms: realms}
}

// List answers with the realm names of the configuration ?target= resolves
// to. An empty target means the default server.
func (h *RealmsHandler) List(c *gin.Context) {
	var req dto.RealmsRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.RespondWithValidationErrors(c, err)
		return
	}

	report, err := h.realms.ListAuthRealms(c.Request.Context(), req.Target)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RealmsResponse{
		Target: report.Target,
		Config: report.Config,
		Realms: report.Names(),
	})
}
