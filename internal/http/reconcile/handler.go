package reconcile

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/http/request"
	"github.com/MrJamesThe3rd/loyer/internal/http/response"
	"github.com/MrJamesThe3rd/loyer/internal/importer"
	"github.com/MrJamesThe3rd/loyer/internal/matching"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

// Handler proposes which bank transfer declarations a statement confirms.
// Nothing is validated here: the owner confirms each match through the payment routes.
type Handler struct {
	importSvc  *importer.Service
	paymentSvc *payment.Service
	matchSvc   *matching.Service
}

func NewHandler(importSvc *importer.Service, paymentSvc *payment.Service, matchSvc *matching.Service) *Handler {
	return &Handler{
		importSvc:  importSvc,
		paymentSvc: paymentSvc,
		matchSvc:   matchSvc,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.reconcile)
	r.Get("/banks", h.banks)
	r.Get("/payers", h.payers)
	r.Post("/payers", h.learn)
}

type matchResponse struct {
	Date      string              `json:"date"`
	Amount    int64               `json:"amount"`
	Label     string              `json:"label"`
	PaymentID uuid.UUID           `json:"payment_id"`
	TenantRef string              `json:"tenant_ref"`
	Reason    payment.MatchReason `json:"reason"`
}

type reconcileResponse struct {
	Lines   int             `json:"lines"`
	Credits int             `json:"credits"`
	Matches []matchResponse `json:"matches"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	lines, err := h.importSvc.Import(importer.Bank(r.FormValue("bank")), file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	matches, err := h.paymentSvc.Reconcile(r.Context(), lines)
	if err != nil {
		response.Internal(w, r, err)
		return
	}

	resp := reconcileResponse{
		Lines:   len(lines),
		Matches: make([]matchResponse, 0, len(matches)),
	}

	for _, l := range lines {
		if l.Amount > 0 {
			resp.Credits++
		}
	}

	for _, m := range matches {
		resp.Matches = append(resp.Matches, matchResponse{
			Date:      m.Line.Date.Format(time.DateOnly),
			Amount:    m.Line.Amount,
			Label:     m.Line.Label,
			PaymentID: m.Payment.ID,
			TenantRef: m.Payment.TenantRef,
			Reason:    m.Reason,
		})
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *Handler) banks(w http.ResponseWriter, _ *http.Request) {
	banks := append([]importer.Bank{importer.BankAuto}, importer.Banks()...)

	response.JSON(w, http.StatusOK, banks)
}

type mappingResponse struct {
	ID         int64     `json:"id"`
	RawPattern string    `json:"raw_pattern"`
	TenantRef  string    `json:"tenant_ref"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *Handler) payers(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.matchSvc.Mappings(r.Context())
	if err != nil {
		response.Internal(w, r, err)
		return
	}

	resp := make([]mappingResponse, len(mappings))
	for i, m := range mappings {
		resp[i] = mappingResponse(m)
	}

	response.JSON(w, http.StatusOK, resp)
}

type learnRequest struct {
	RawPattern string `json:"raw_pattern" validate:"required,max=200"`
	TenantRef  string `json:"tenant_ref" validate:"required"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := request.Decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), request.StatusCode(err))
		return
	}

	if err := h.matchSvc.Learn(r.Context(), req.RawPattern, req.TenantRef); err != nil {
		if errors.Is(err, matching.ErrInvalidMapping) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		response.Internal(w, r, err)

		return
	}

	w.WriteHeader(http.StatusCreated)
}
