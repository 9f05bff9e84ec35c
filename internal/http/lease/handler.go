package lease

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/loyer/internal/auth"
	"github.com/MrJamesThe3rd/loyer/internal/document"
	"github.com/MrJamesThe3rd/loyer/internal/http/request"
	"github.com/MrJamesThe3rd/loyer/internal/http/response"
	"github.com/MrJamesThe3rd/loyer/internal/lease"
)

// Links hands out direct download URLs when the document storage supports them.
type Links interface {
	DownloadURL(ctx context.Context, key string) (string, bool, error)
}

type Handler struct {
	svc   *lease.Service
	links Links
}

// NewHandler builds the lease routes. links may be nil, documents are then always streamed.
func NewHandler(svc *lease.Service, links Links) *Handler {
	return &Handler{svc: svc, links: links}
}

func (h *Handler) Routes(r chi.Router) {
	owner := auth.RequireRole(auth.RoleOwner)

	r.With(owner).Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/signatures", h.sign)
	r.Get("/{id}/document", h.document)
	r.With(owner).Post("/{id}/document", h.regenerate)
}

type createLeaseRequest struct {
	Title        string     `json:"title" validate:"required"`
	Kind         lease.Kind `json:"kind" validate:"required,oneof=individual colocation"`
	PropertyRef  string     `json:"property_ref" validate:"required"`
	TenantRef    string     `json:"tenant_ref" validate:"required"`
	TenantName   string     `json:"tenant_name"`
	Rent         int64      `json:"rent" validate:"gt=0"`
	Charges      int64      `json:"charges" validate:"gte=0"`
	Deposit      int64      `json:"deposit" validate:"gte=0"`
	StartDate    string     `json:"start_date" validate:"required"`
	EndDate      string     `json:"end_date"`
	Jurisdiction string     `json:"jurisdiction"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createLeaseRequest
	if err := request.Decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), request.StatusCode(err))
		return
	}

	start, err := request.Date(req.StartDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	end, err := request.Date(req.EndDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	l, err := h.svc.Create(r.Context(), lease.CreateParams{
		Title:        req.Title,
		Kind:         req.Kind,
		PropertyRef:  req.PropertyRef,
		TenantRef:    req.TenantRef,
		TenantName:   req.TenantName,
		Rent:         req.Rent,
		Charges:      req.Charges,
		Deposit:      req.Deposit,
		StartDate:    *start,
		EndDate:      end,
		Jurisdiction: req.Jurisdiction,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, toResponse(l))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := lease.ListFilter{
		PropertyRef: q.Get("property_ref"),
		TenantRef:   q.Get("tenant_ref"),
	}

	if s := q.Get("status"); s != "" {
		filter.Status = new(lease.Status(s))
	}

	if claims, _ := auth.FromContext(r.Context()); claims != nil && claims.Role == auth.RoleTenant {
		filter.TenantRef = claims.TenantRef
	}

	leases, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, toResponseList(leases))
}

// load fetches the lease named in the URL, hiding other tenants' leases.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*lease.Lease, bool) {
	id, err := lease.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}

	if claims, _ := auth.FromContext(r.Context()); claims != nil && claims.Role == auth.RoleTenant && claims.TenantRef != l.TenantRef {
		http.Error(w, "lease not found", http.StatusNotFound)
		return nil, false
	}

	return l, true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	l, ok := h.load(w, r)
	if !ok {
		return
	}

	response.JSON(w, http.StatusOK, toResponse(l))
}

type signRequest struct {
	Role        lease.Role `json:"role" validate:"required"`
	SignerName  string     `json:"signer_name" validate:"required"`
	SignerEmail string     `json:"signer_email" validate:"omitempty,email"`
	// Base64 image, optionally as a data URL straight from a canvas.
	Image string `json:"image" validate:"required"`
}

func decodeImage(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "data:") {
		_, payload, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data URL", lease.ErrInvalidSignature)
		}

		raw = payload
	}

	img, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: image is not base64", lease.ErrInvalidSignature)
	}

	return img, nil
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := request.Decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), request.StatusCode(err))
		return
	}

	if claims, _ := auth.FromContext(r.Context()); claims != nil && claims.Role == auth.RoleTenant {
		if req.Role == lease.RoleOwner {
			http.Error(w, "tenants cannot sign for the owner", http.StatusForbidden)
			return
		}

		// Tenants only see their own leases; anything else answers like get.
		if _, ok := h.load(w, r); !ok {
			return
		}
	}

	img, err := decodeImage(req.Image)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.RecordSignature(r.Context(), chi.URLParam(r, "id"), lease.SignParams{
		Role:        req.Role,
		SignerName:  req.SignerName,
		SignerEmail: req.SignerEmail,
		Image:       img,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, signResponse{
		Lease:                 toResponse(res.Lease),
		AllSignaturesComplete: res.AllSignaturesComplete,
		Finalized:             res.Finalized,
	})
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	l, ok := h.load(w, r)
	if !ok {
		return
	}

	if h.links != nil && l.DocumentKey != "" {
		url, ok, err := h.links.DownloadURL(r.Context(), l.DocumentKey)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if ok {
			http.Redirect(w, r, url, http.StatusTemporaryRedirect)
			return
		}
	}

	rc, err := h.svc.OpenDocument(r.Context(), l.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	response.PDF(w, "bail-"+l.ID.String()+".pdf", rc)
}

func (h *Handler) regenerate(w http.ResponseWriter, r *http.Request) {
	id, err := lease.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	l, err := h.svc.RegenerateDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, toResponse(l))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lease.ErrInvalidContract),
		errors.Is(err, lease.ErrInvalidLease),
		errors.Is(err, lease.ErrInvalidSignature),
		errors.Is(err, lease.ErrRoleNotRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lease.ErrNotFound):
		http.Error(w, "lease not found", http.StatusNotFound)
	case errors.Is(err, lease.ErrNoDocument), errors.Is(err, document.ErrNotFound):
		http.Error(w, "lease has no document", http.StatusNotFound)
	case errors.Is(err, lease.ErrAlreadySigned), errors.Is(err, lease.ErrInvalidStateTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		response.Internal(w, r, err)
	}
}
