package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/payment"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	svc *payment.Service
}

func NewHandler(svc *payment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("/create", h.CreatePayment)
		payments.GET("/status/:payment_id", h.GetStatus)
		payments.POST("/confirm/:appointment_id", h.ConfirmPayment)
	}
}

func (h *Handler) CreatePayment(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	var req model.CreatePaymentRequest
	if !handler.Bind(c, &req) {
		return
	}

	p, err := h.svc.Create(c.Request.Context(), caller, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, model.NewCreatePaymentResponse(p))
}

func (h *Handler) GetStatus(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "payment_id", "payment")
	if !ok {
		return
	}

	p, err := h.svc.Status(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

// ConfirmPayment is open to any authenticated caller; it stands in for a
// gateway callback.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	if _, ok := handler.Caller(c); !ok {
		return
	}
	id, ok := handler.PathID(c, "appointment_id", "appointment")
	if !ok {
		return
	}

	if _, err := h.svc.Confirm(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Payment confirmed successfully")
}
