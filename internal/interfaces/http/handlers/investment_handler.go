package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/internal/usecases"
)

type investmentService interface {
	ListProducts(ctx context.Context) ([]*entities.InvestmentProduct, error)
	Open(ctx context.Context, userID uuid.UUID, input *entities.OpenInvestmentInput) (*entities.Investment, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*entities.Investment, []*entities.InvestmentReturn, error)
	List(ctx context.Context, userID uuid.UUID) ([]*entities.Investment, error)
	Portfolio(ctx context.Context, userID uuid.UUID, currency string) (*entities.Portfolio, error)
}

// InvestmentHandler handles investment product and position endpoints
type InvestmentHandler struct {
	investments investmentService
}

func NewInvestmentHandler(investments *usecases.InvestmentUsecase) *InvestmentHandler {
	return &InvestmentHandler{investments: investments}
}

// ListProducts
// GET /api/v1/investments/products
func (h *InvestmentHandler) ListProducts(c *gin.Context) {
	products, err := h.investments.ListProducts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"products": products})
}

// Open debits the wallet and starts an investment
// POST /api/v1/investments
func (h *InvestmentHandler) Open(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.OpenInvestmentInput
	if !bindJSON(c, &input) {
		return
	}
	input.IP = c.ClientIP()

	inv, err := h.investments.Open(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"investment": inv})
}

// List
// GET /api/v1/investments
func (h *InvestmentHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.investments.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"investments": items})
}

// Get returns an investment with its paid returns
// GET /api/v1/investments/:id
func (h *InvestmentHandler) Get(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}

	inv, returns, err := h.investments.Get(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"investment": inv, "returns": returns})
}

// Portfolio returns the caller's aggregate position in a currency
// GET /api/v1/investments/portfolio?currency=NGN
func (h *InvestmentHandler) Portfolio(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	portfolio, err := h.investments.Portfolio(c.Request.Context(), userID, c.DefaultQuery("currency", "NGN"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"portfolio": portfolio})
}
