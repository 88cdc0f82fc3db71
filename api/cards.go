package api

import (
	"net/http"
	"time"

	"github.com/chxlky/boardsync/internal/board"
	"github.com/chxlky/boardsync/internal/calsync"
	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/reorder"
	"github.com/gin-gonic/gin"
)

type createCardRequest struct {
	ProjectID string        `json:"projectId" binding:"required"`
	Title     string        `json:"title"`
	Status    models.Status `json:"status"`
	Position  *int          `json:"position"`
}

type updateCardRequest struct {
	Title    *string        `json:"title"`
	Status   *models.Status `json:"status"`
	Position *int           `json:"position"`
	// Version is the card's updatedAt as last seen by the client.
	Version *time.Time `json:"version"`
}

type moveRequest struct {
	ID       string        `json:"id"`
	Status   models.Status `json:"status"`
	Position int           `json:"position"`
	Version  *time.Time    `json:"version"`
}

type reorderRequest struct {
	ProjectID string        `json:"projectId"`
	Moves     []moveRequest `json:"moves"`
}

type dueDateRequest struct {
	Start          string  `json:"start" binding:"required"`
	End            *string `json:"end"`
	AllDay         bool    `json:"allDay"`
	IdempotencyKey string  `json:"idempotencyKey"`
}

func (h *Handler) ListCardsHandler(c *gin.Context) {
	projectID := c.Query("projectId")
	if projectID == "" {
		fail(c, http.StatusBadRequest, "projectId required")
		return
	}
	cards, err := h.Board.ListCards(c.Request.Context(), currentUser(c).ID, projectID)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, cards)
}

func (h *Handler) CreateCardHandler(c *gin.Context) {
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	card, err := h.Board.CreateCard(c.Request.Context(), currentUser(c).ID, board.NewCard{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Status:    req.Status,
		Position:  req.Position,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusCreated, card)
}

func (h *Handler) UpdateCardHandler(c *gin.Context) {
	var req updateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	card, err := h.Board.UpdateCard(c.Request.Context(), currentUser(c).ID, c.Param("id"), board.CardUpdate{
		Title:           req.Title,
		Status:          req.Status,
		Position:        req.Position,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, card)
}

func (h *Handler) ArchiveCardHandler(c *gin.Context) {
	card, err := h.Board.ArchiveCard(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, card)
}

func (h *Handler) DeleteCardHandler(c *gin.Context) {
	if err := h.Board.DeleteCard(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

func (h *Handler) ReorderCardsHandler(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	moves := make([]reorder.Move, len(req.Moves))
	for i, m := range req.Moves {
		moves[i] = reorder.Move{CardID: m.ID, Status: m.Status, Position: m.Position, ExpectedVersion: m.Version}
	}

	cards, err := h.Reorder.Reorder(c.Request.Context(), currentUser(c).ID, req.ProjectID, moves)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, cards)
}

func (h *Handler) SetDueDateHandler(c *gin.Context) {
	var req dueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	start, err := calsync.ParseInstant(req.Start)
	if err != nil {
		failWith(c, err)
		return
	}
	in := calsync.DueDateInput{Start: start, AllDay: req.AllDay, IdempotencyKey: req.IdempotencyKey}
	if req.End != nil && *req.End != "" {
		end, err := calsync.ParseInstant(*req.End)
		if err != nil {
			failWith(c, err)
			return
		}
		in.End = &end
	}

	event, err := h.Sync.SetDueDate(c.Request.Context(), currentUser(c).ID, c.Param("id"), in)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, event)
}

func (h *Handler) ClearDueDateHandler(c *gin.Context) {
	if err := h.Sync.ClearDueDate(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}
