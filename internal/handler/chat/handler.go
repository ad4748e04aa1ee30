package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/chat"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	svc *chat.Service
}

func NewHandler(svc *chat.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/chats", h.ListConversations)

	messages := r.Group("/messages")
	{
		messages.POST("", h.SendMessage)
		messages.GET("/:appointment_id", h.History)
		messages.POST("/:appointment_id/read", h.MarkRead)
	}
}

func (h *Handler) ListConversations(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}

	convs, err := h.svc.ListConversations(c.Request.Context(), caller)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, convs)
}

func (h *Handler) SendMessage(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	var req model.SendMessageRequest
	if !handler.Bind(c, &req) {
		return
	}
	appointmentID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NotFound("appointment", err))
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), caller, appointmentID, req.Message)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, msg)
}

func (h *Handler) History(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "appointment_id", "appointment")
	if !ok {
		return
	}

	msgs, err := h.svc.History(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, msgs)
}

func (h *Handler) MarkRead(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "appointment_id", "appointment")
	if !ok {
		return
	}

	n, err := h.svc.MarkRead(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, &model.MarkReadResponse{Updated: n})
}
