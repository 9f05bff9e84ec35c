package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/auth"
	"github.com/MrJamesThe3rd/loyer/internal/document"
	"github.com/MrJamesThe3rd/loyer/internal/http/request"
	"github.com/MrJamesThe3rd/loyer/internal/http/response"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type Links interface {
	DownloadURL(ctx context.Context, key string) (string, bool, error)
}

type Handler struct {
	svc   *payment.Service
	links Links
}

func NewHandler(svc *payment.Service, links Links) *Handler {
	return &Handler{svc: svc, links: links}
}

func (h *Handler) Routes(r chi.Router) {
	owner := auth.RequireRole(auth.RoleOwner)

	r.With(owner).Post("/", h.schedule)
	r.Post("/declarations", h.declare)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.With(owner).Post("/{id}/validation", h.validate)
	r.Get("/{id}/receipt", h.receipt)
}

// tenantScope returns the tenant ref a tenant token is restricted to, or "" for the owner.
func tenantScope(r *http.Request) string {
	if claims, ok := auth.FromContext(r.Context()); ok && claims.Role == auth.RoleTenant {
		return claims.TenantRef
	}

	return ""
}

type scheduleRequest struct {
	TenantRef   string `json:"tenant_ref" validate:"required"`
	PropertyRef string `json:"property_ref" validate:"required"`
	DueDate     string `json:"due_date" validate:"required"`
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := request.Decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), request.StatusCode(err))
		return
	}

	due, err := request.Date(req.DueDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.svc.Schedule(r.Context(), payment.ScheduleParams{
		TenantRef:   req.TenantRef,
		PropertyRef: req.PropertyRef,
		DueDate:     *due,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, toResponse(p))
}

type declareRequest struct {
	TenantRef   string             `json:"tenant_ref"`
	PropertyRef string             `json:"property_ref" validate:"required"`
	TenantType  payment.TenantType `json:"tenant_type"`
	// Amount in cents.
	Amount    int64          `json:"amount"`
	Date      string         `json:"date"`
	Method    payment.Method `json:"method"`
	Reference string         `json:"reference" validate:"max=140"`
	Notes     string         `json:"notes" validate:"max=1000"`
}

func (h *Handler) declare(w http.ResponseWriter, r *http.Request) {
	var req declareRequest
	if err := request.Decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), request.StatusCode(err))
		return
	}

	tenantRef := req.TenantRef
	if scope := tenantScope(r); scope != "" {
		tenantRef = scope
	}

	if tenantRef == "" {
		http.Error(w, "tenant_ref is required", http.StatusBadRequest)
		return
	}

	p, err := h.svc.Declare(r.Context(), payment.DeclareParams{
		TenantRef:   tenantRef,
		PropertyRef: req.PropertyRef,
		TenantType:  req.TenantType,
		Amount:      req.Amount,
		Date:        req.Date,
		Method:      req.Method,
		Reference:   req.Reference,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, toResponse(p))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := payment.ListFilter{
		TenantRef:   q.Get("tenant_ref"),
		PropertyRef: q.Get("property_ref"),
	}

	if s := q.Get("status"); s != "" {
		filter.Status = new(payment.Status(s))
	}

	var err error

	if filter.StartDate, err = request.Date(q.Get("start_date")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if filter.EndDate, err = request.Date(q.Get("end_date")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if scope := tenantScope(r); scope != "" {
		filter.TenantRef = scope
	}

	payments, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, toResponseList(payments))
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*payment.Payment, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}

	if scope := tenantScope(r); scope != "" && scope != p.TenantRef {
		http.Error(w, "payment not found", http.StatusNotFound)
		return nil, false
	}

	return p, true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}

	response.JSON(w, http.StatusOK, toResponse(p))
}

type validateRequest struct {
	Decision payment.Decision `json:"decision" validate:"required"`
	Note     string           `json:"note" validate:"max=1000"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req validateRequest
	if err := request.Decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), request.StatusCode(err))
		return
	}

	p, err := h.svc.Validate(r.Context(), id, req.Decision, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}

	if h.links != nil && p.ReceiptKey != "" {
		url, ok, err := h.links.DownloadURL(r.Context(), p.ReceiptKey)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if ok {
			http.Redirect(w, r, url, http.StatusTemporaryRedirect)
			return
		}
	}

	rc, settled, err := h.svc.OpenReceipt(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	response.PDF(w, "quittance-"+settled.ReceiptNumber+".pdf", rc)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidDate),
		errors.Is(err, payment.ErrInvalidMethod),
		errors.Is(err, payment.ErrInvalidDecision),
		errors.Is(err, payment.ErrInvalidPayment),
		errors.Is(err, payment.ErrNoActiveLease):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, payment.ErrNotFound):
		http.Error(w, "payment not found", http.StatusNotFound)
	case errors.Is(err, payment.ErrNoReceipt), errors.Is(err, document.ErrNotFound):
		http.Error(w, "payment has no receipt", http.StatusNotFound)
	case errors.Is(err, payment.ErrInvalidStateTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		response.Internal(w, r, err)
	}
}
