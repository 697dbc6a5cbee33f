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

type cardService interface {
	Create(ctx context.Context, userID uuid.UUID, input *entities.CreateCardInput) (*usecases.IssuedCard, error)
	Get(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error)
	List(ctx context.Context, userID uuid.UUID) ([]*entities.Card, error)
	Update(ctx context.Context, userID, cardID uuid.UUID, input *entities.UpdateCardInput) (*entities.Card, error)
	Freeze(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error)
	Unfreeze(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error)
	Block(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error)
	Fund(ctx context.Context, userID, cardID uuid.UUID, input *entities.FundCardInput) (*entities.Transaction, error)
}

// CardHandler handles virtual card endpoints
type CardHandler struct {
	cards cardService
}

func NewCardHandler(cards *usecases.CardUsecase) *CardHandler {
	return &CardHandler{cards: cards}
}

// Create issues a virtual card. The full number and CVV are returned only here.
// POST /api/v1/cards
func (h *CardHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.CreateCardInput
	if !bindJSON(c, &input) {
		return
	}

	issued, err := h.cards.Create(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, issued)
}

// List returns the caller's cards
// GET /api/v1/cards
func (h *CardHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	cards, err := h.cards.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cards": cards})
}

// Get returns one card
// GET /api/v1/cards/:id
func (h *CardHandler) Get(c *gin.Context) {
	h.act(c, h.cards.Get)
}

// Update changes the monthly limit
// PATCH /api/v1/cards/:id
func (h *CardHandler) Update(c *gin.Context) {
	userID, cardID, ok := ownedResource(c)
	if !ok {
		return
	}
	var input entities.UpdateCardInput
	if !bindJSON(c, &input) {
		return
	}

	card, err := h.cards.Update(c.Request.Context(), userID, cardID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"card": card})
}

// Freeze
// POST /api/v1/cards/:id/freeze
func (h *CardHandler) Freeze(c *gin.Context) {
	h.act(c, h.cards.Freeze)
}

// Unfreeze
// POST /api/v1/cards/:id/unfreeze
func (h *CardHandler) Unfreeze(c *gin.Context) {
	h.act(c, h.cards.Unfreeze)
}

// Block terminates the card permanently
// POST /api/v1/cards/:id/block
func (h *CardHandler) Block(c *gin.Context) {
	h.act(c, h.cards.Block)
}

// Fund moves money from the linked wallet onto the card
// POST /api/v1/cards/:id/fund
func (h *CardHandler) Fund(c *gin.Context) {
	userID, cardID, ok := ownedResource(c)
	if !ok {
		return
	}
	var input entities.FundCardInput
	if !bindJSON(c, &input) {
		return
	}

	txn, err := h.cards.Fund(c.Request.Context(), userID, cardID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"transaction": txn})
}

func (h *CardHandler) act(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID) (*entities.Card, error)) {
	userID, cardID, ok := ownedResource(c)
	if !ok {
		return
	}

	card, err := fn(c.Request.Context(), userID, cardID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"card": card})
}

// ownedResource reads the caller and the :id path parameter.
func ownedResource(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}
