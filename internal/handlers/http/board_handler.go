package http

import (
	"net/http"

	"drawza/internal/core/domain"
	"drawza/internal/core/ports"
	"drawza/internal/core/services"
	"drawza/internal/infrastructure/middleware"
	"drawza/pkg/errors"
	"drawza/pkg/utils"
	"drawza/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BoardHandler serves the board persistence API consumed by clients on
// room entry and by the debounced save loop.
type BoardHandler struct {
	boardService ports.BoardService
	logger       *zap.SugaredLogger
}

func NewBoardHandler(boardService ports.BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		boardService: boardService,
		logger:       logger.Sugar(),
	}
}

func (h *BoardHandler) SetupRoutes(router *gin.Engine, authService services.AuthService) {
	api := router.Group("/api/boards")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.GET("/:roomId", h.GetBoard)
		api.PUT("/:roomId", h.PutBoard)
	}

	rooms := router.Group("/api/rooms")
	rooms.Use(middleware.AuthMiddleware(authService))
	{
		rooms.POST("", h.CreateRoom)
	}
}

// CreateRoom mints a fresh shareable room id. No state is allocated until
// someone joins or saves; the id just guarantees a collision-free link.
func (h *BoardHandler) CreateRoom(c *gin.Context) {
	roomID := utils.NewRoomID()
	h.logger.Infow("room id minted", "room_id", roomID, "user_id", requesterID(c))
	c.JSON(http.StatusCreated, gin.H{"roomId": roomID})
}

func requesterID(c *gin.Context) domain.UserID {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(domain.UserID); ok {
			return id
		}
	}
	return ""
}

// GetBoard returns the stored board for a room. A room that has never been
// saved comes back as an empty element collection, not a 404.
func (h *BoardHandler) GetBoard(c *gin.Context) {
	roomID := c.Param("roomId")
	if err := validation.ValidateRoomID(roomID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	board, err := h.boardService.LoadBoard(c.Request.Context(), domain.RoomID(roomID), requesterID(c))
	if err != nil {
		c.Error(errors.NewPersistenceError(err))
		return
	}

	c.JSON(http.StatusOK, board)
}

type PutBoardRequest struct {
	Elements []domain.Element `json:"elements"`
}

// PutBoard replaces the room's element collection with the submitted one.
func (h *BoardHandler) PutBoard(c *gin.Context) {
	roomID := c.Param("roomId")
	if err := validation.ValidateRoomID(roomID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	var req PutBoardRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	for _, el := range req.Elements {
		if err := validation.ValidateElementID(string(el.ID)); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
		if err := validation.ValidateOpacity(el.Opacity); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	board, err := h.boardService.SaveBoard(c.Request.Context(), domain.RoomID(roomID), req.Elements, requesterID(c))
	if err != nil {
		appErr := errors.GetAppError(err)
		if appErr != nil {
			c.Error(appErr)
			return
		}
		c.Error(errors.NewPersistenceError(err))
		return
	}

	h.logger.Debugw("board saved", "room_id", roomID, "elements", len(board.Elements))
	c.JSON(http.StatusOK, board)
}
