package export

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/export"
	"github.com/MrJamesThe3rd/loyer/internal/http/request"
	"github.com/MrJamesThe3rd/loyer/internal/http/response"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.metadata)
	r.Post("/download", h.download)
}

type exportRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	TenantRef   string `json:"tenant_ref"`
	PropertyRef string `json:"property_ref"`
}

func (req exportRequest) filter() (payment.ListFilter, error) {
	start, err := request.Date(req.StartDate)
	if err != nil {
		return payment.ListFilter{}, err
	}

	end, err := request.Date(req.EndDate)
	if err != nil {
		return payment.ListFilter{}, err
	}

	return payment.ListFilter{
		TenantRef:   req.TenantRef,
		PropertyRef: req.PropertyRef,
		StartDate:   start,
		EndDate:     end,
	}, nil
}

type paymentResponse struct {
	ID            uuid.UUID      `json:"id"`
	TenantRef     string         `json:"tenant_ref"`
	TenantName    string         `json:"tenant_name,omitempty"`
	PropertyRef   string         `json:"property_ref"`
	DueDate       string         `json:"due_date"`
	PaidAmount    int64          `json:"paid_amount"`
	Status        payment.Status `json:"status"`
	ReceiptNumber string         `json:"receipt_number,omitempty"`
	ReceiptFile   string         `json:"receipt_file,omitempty"`
}

type exportMetadataResponse struct {
	Payments  []paymentResponse `json:"payments"`
	EmailBody string            `json:"email_body"`
}

func toPaymentResponse(item export.Item) paymentResponse {
	p := item.Payment

	resp := paymentResponse{
		ID:            p.ID,
		TenantRef:     p.TenantRef,
		TenantName:    p.TenantName,
		PropertyRef:   p.PropertyRef,
		DueDate:       p.DueDate.Format(time.DateOnly),
		PaidAmount:    p.PaidAmount,
		Status:        p.Status,
		ReceiptNumber: p.ReceiptNumber,
	}

	if item.FilePath != "" {
		resp.ReceiptFile = filepath.Base(item.FilePath)
	}

	return resp
}

// run exports into a fresh temporary directory the caller must remove.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) ([]export.Item, string, bool) {
	var req exportRequest
	if err := request.Decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), request.StatusCode(err))
		return nil, "", false
	}

	filter, err := req.filter()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, "", false
	}

	tmpDir, err := os.MkdirTemp("", "loyer-export-*")
	if err != nil {
		response.Internal(w, r, err)
		return nil, "", false
	}

	items, err := h.svc.Export(r.Context(), filter, tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		response.Internal(w, r, err)

		return nil, "", false
	}

	return items, tmpDir, true
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	items, tmpDir, ok := h.run(w, r)
	if !ok {
		return
	}
	defer os.RemoveAll(tmpDir)

	resp := exportMetadataResponse{
		Payments:  make([]paymentResponse, 0, len(items)),
		EmailBody: h.svc.GenerateSummary(items),
	}

	for _, item := range items {
		resp.Payments = append(resp.Payments, toPaymentResponse(item))
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	items, tmpDir, ok := h.run(w, r)
	if !ok {
		return
	}
	defer os.RemoveAll(tmpDir)

	summary := h.svc.GenerateSummary(items)
	if err := os.WriteFile(filepath.Join(tmpDir, "recapitulatif.txt"), []byte(summary), 0o644); err != nil {
		response.Internal(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"quittances_%s.zip\"", time.Now().Format("20060102")))

	zipWriter := zip.NewWriter(w)
	defer zipWriter.Close()

	err := filepath.Walk(tmpDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		relPath, _ := filepath.Rel(tmpDir, path)

		zf, err := zipWriter.Create(relPath)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(zf, f)

		return err
	})
	if err != nil {
		slog.Error("failed to create zip", "error", err)
	}
}
