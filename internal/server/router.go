package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pocketnotes/backend/internal/notes"
)

var errMissingRepository = errors.New("notes repository dependency required")

// Dependencies wires the HTTP layer to its collaborators.
type Dependencies struct {
	Repository notes.Repository
	Logger     *zap.Logger
}

// NewHTTPHandler builds the gin handler exposing the notes API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Repository == nil {
		return nil, errMissingRepository
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		repository: deps.Repository,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	api.GET("/notes", handler.handleListNotes)
	api.GET("/notes/all", handler.handleListAllNotes)
	api.GET("/notes/trash", handler.handleListTrash)
	api.GET("/notes/trash/count", handler.handleTrashCount)
	api.DELETE("/notes/trash", handler.handleEmptyTrash)
	api.POST("/notes/trash/restore", handler.handleRestoreAll)
	api.POST("/notes", handler.handleCreateNote)
	api.GET("/notes/:id", handler.handleGetNote)
	api.PUT("/notes/:id", handler.handleUpdateNote)
	api.DELETE("/notes/:id", handler.handleDeleteNote)
	api.POST("/notes/:id/restore", handler.handleRestoreNote)
	api.DELETE("/notes/:id/permanent", handler.handlePermanentDelete)

	return router, nil
}

type httpHandler struct {
	repository notes.Repository
	logger     *zap.Logger
}

type notePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// noteResponse is the wire shape of a note. DeletedAt has no omitempty so an
// active note serializes it as an explicit null.
type noteResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
}

func renderNote(note notes.Note) noteResponse {
	return noteResponse{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
		DeletedAt: note.DeletedAt,
	}
}

func renderNotes(items []notes.Note) []noteResponse {
	result := make([]noteResponse, 0, len(items))
	for _, note := range items {
		result = append(result, renderNote(note))
	}
	return result
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	items, err := h.repository.FindAll(c.Request.Context())
	if err != nil {
		h.renderError(c, "list_notes", err)
		return
	}
	c.JSON(http.StatusOK, renderNotes(items))
}

func (h *httpHandler) handleListAllNotes(c *gin.Context) {
	items, err := h.repository.FindAllIncludingDeleted(c.Request.Context())
	if err != nil {
		h.renderError(c, "list_all_notes", err)
		return
	}
	c.JSON(http.StatusOK, renderNotes(items))
}

func (h *httpHandler) handleListTrash(c *gin.Context) {
	items, err := h.repository.FindDeleted(c.Request.Context())
	if err != nil {
		h.renderError(c, "list_trash", err)
		return
	}
	c.JSON(http.StatusOK, renderNotes(items))
}

func (h *httpHandler) handleTrashCount(c *gin.Context) {
	count, err := h.repository.CountDeleted(c.Request.Context())
	if err != nil {
		h.renderError(c, "trash_count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	note, err := h.repository.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, "get_note", err)
		return
	}
	if note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return
	}
	c.JSON(http.StatusOK, renderNote(*note))
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var payload notePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.repository.Create(c.Request.Context(), payload.Title, payload.Content)
	if err != nil {
		h.renderError(c, "create_note", err)
		return
	}
	c.JSON(http.StatusCreated, renderNote(*note))
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	var payload notePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.repository.Update(c.Request.Context(), c.Param("id"), payload.Title, payload.Content)
	if err != nil {
		h.renderError(c, "update_note", err)
		return
	}
	if note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return
	}
	c.JSON(http.StatusOK, renderNote(*note))
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	h.renderBoolResult(c, "delete_note")(h.repository.MoveToRecycleBin(c.Request.Context(), c.Param("id")))
}

func (h *httpHandler) handleRestoreNote(c *gin.Context) {
	h.renderBoolResult(c, "restore_note")(h.repository.Restore(c.Request.Context(), c.Param("id")))
}

func (h *httpHandler) handlePermanentDelete(c *gin.Context) {
	h.renderBoolResult(c, "permanent_delete")(h.repository.PermanentDelete(c.Request.Context(), c.Param("id")))
}

func (h *httpHandler) handleEmptyTrash(c *gin.Context) {
	count, err := h.repository.EmptyRecycleBin(c.Request.Context())
	if err != nil {
		h.renderError(c, "empty_trash", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": count})
}

func (h *httpHandler) handleRestoreAll(c *gin.Context) {
	count, err := h.repository.RestoreAll(c.Request.Context())
	if err != nil {
		h.renderError(c, "restore_all", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": count})
}

func (h *httpHandler) renderBoolResult(c *gin.Context, operation string) func(bool, error) {
	return func(found bool, err error) {
		if err != nil {
			h.renderError(c, operation, err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// renderError maps the repository error taxonomy to HTTP statuses. Not-found
// never reaches here; it is a nil or false result, not an error.
func (h *httpHandler) renderError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, notes.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "detail": err.Error()})
	case errors.Is(err, notes.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, notes.ErrUnsupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": "unsupported_operation"})
	default:
		h.logger.Error("repository operation failed",
			zap.String("operation", operation),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
