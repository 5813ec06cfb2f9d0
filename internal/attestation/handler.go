package attestation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merklebase/attestd/internal/identity"
	"github.com/merklebase/attestd/pkg/merkle"
)

// Handler exposes the attestation lifecycle over HTTP.
type Handler struct {
	svc    *Service
	tokens *identity.TokenIssuer // nil = open mode, no auth enforcement
	logger *zap.Logger
}

// NewHandler creates a Handler. tokens may be nil to disable business token
// auth on protected routes (development/open mode).
func NewHandler(svc *Service, tokens *identity.TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// requireBusiness returns the RequireBusiness middleware when auth is
// configured, or a no-op middleware in open mode.
func (h *Handler) requireBusiness() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return identity.RequireBusiness(h.tokens)
}

// Register registers all attestation routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	att := rg.Group("/attestations", h.requireBusiness())
	{
		att.POST("", h.Submit)
		att.GET("", h.List)
		att.GET("/:id", h.Get)
		att.POST("/:id/revoke", h.Revoke)
	}

	// Proof verification is public: anyone holding a leaf, proof, and root
	// can check inclusion without a business token.
	rg.POST("/verify", h.VerifyProof)
}

// businessID resolves the tenant for a request: the token identity when auth
// is on, the business_id query parameter in open mode.
func (h *Handler) businessID(c *gin.Context) string {
	if claims := identity.BusinessFromCtx(c); claims != nil {
		return claims.BusinessID
	}
	return c.Query("business_id")
}

// Submit handles POST /attestations.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if claims := identity.BusinessFromCtx(c); claims != nil {
		req.CallerBusinessID = claims.BusinessID
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	rec, err := h.svc.Submit(c.Request.Context(), &req)
	if err != nil {
		var valErr *ErrValidation
		switch {
		case errors.As(err, &valErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Msg})
		case errors.Is(err, ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "business identity mismatch"})
		case errors.Is(err, ErrBusinessNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "business not found"})
		default:
			h.logger.Error("submit attestation", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"attestation": rec})
}

// List handles GET /attestations.
func (h *Handler) List(c *gin.Context) {
	businessID := h.businessID(c)
	if businessID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "business not found"})
		return
	}

	filter := ListFilter{
		Period: c.Query("period"),
		Status: Status(c.Query("status")),
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.svc.List(c.Request.Context(), businessID, filter, Page{Page: page, Limit: limit})
	if err != nil {
		h.logger.Error("list attestations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list attestations"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get handles GET /attestations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attestation ID"})
		return
	}

	businessID := h.businessID(c)
	if businessID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "attestation not found"})
		return
	}

	rec, err := h.svc.GetByID(c.Request.Context(), id, businessID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "attestation not found"})
			return
		}
		h.logger.Error("get attestation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get attestation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attestation": rec})
}

// Revoke handles POST /attestations/:id/revoke.
func (h *Handler) Revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attestation ID"})
		return
	}

	businessID := h.businessID(c)
	if businessID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "attestation not found"})
		return
	}

	var body RevokeRequest
	// Ignore parse errors, reason is optional.
	_ = c.ShouldBindJSON(&body)

	rec, err := h.svc.Revoke(c.Request.Context(), id, businessID, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "attestation not found"})
		case errors.Is(err, ErrRevokeFailed):
			h.logger.Error("revoke attestation", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke attestation"})
		default:
			h.logger.Error("revoke attestation", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke attestation"})
		}
		return
	}

	RecordRevocation()
	c.JSON(http.StatusOK, gin.H{"attestation": rec})
}

// verifyRequest is the payload for the public proof verification endpoint.
type verifyRequest struct {
	Leaf  string       `json:"leaf" binding:"required"`
	Proof merkle.Proof `json:"proof"`
	Root  string       `json:"root" binding:"required"`
	Index int          `json:"index"`
}

// VerifyProof handles POST /verify. Verification is pure; malformed input
// yields valid=false, never an error status.
func (h *Handler) VerifyProof(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	valid := merkle.Verify([]byte(req.Leaf), req.Proof, req.Root, req.Index)
	RecordVerification(valid)

	c.JSON(http.StatusOK, gin.H{"valid": valid})
}
