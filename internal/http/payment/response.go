package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type paymentResponse struct {
	ID               uuid.UUID          `json:"id"`
	LeaseID          *uuid.UUID         `json:"lease_id,omitempty"`
	TenantRef        string             `json:"tenant_ref"`
	TenantName       string             `json:"tenant_name,omitempty"`
	TenantType       payment.TenantType `json:"tenant_type"`
	PropertyRef      string             `json:"property_ref"`
	ExpectedAmount   int64              `json:"expected_amount"`
	PaidAmount       int64              `json:"paid_amount"`
	Balance          int64              `json:"balance"`
	DueDate          string             `json:"due_date"`
	PaymentDate      string             `json:"payment_date,omitempty"`
	Method           payment.Method     `json:"method,omitempty"`
	Status           payment.Status     `json:"status"`
	Reference        string             `json:"reference,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	ReceiptNumber    string             `json:"receipt_number,omitempty"`
	ReceiptAvailable bool               `json:"receipt_available"`
	ResolutionNote   string             `json:"resolution_note,omitempty"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        *time.Time         `json:"updated_at,omitempty"`
}

func toResponse(p *payment.Payment) paymentResponse {
	resp := paymentResponse{
		ID:               p.ID,
		LeaseID:          p.LeaseID,
		TenantRef:        p.TenantRef,
		TenantName:       p.TenantName,
		TenantType:       p.TenantType,
		PropertyRef:      p.PropertyRef,
		ExpectedAmount:   p.ExpectedAmount,
		PaidAmount:       p.PaidAmount,
		Balance:          p.Balance(),
		DueDate:          p.DueDate.Format(time.DateOnly),
		Method:           p.Method,
		Status:           p.Status,
		Reference:        p.Reference,
		Notes:            p.Notes,
		ReceiptNumber:    p.ReceiptNumber,
		ReceiptAvailable: p.Status.ReceiptEligible(),
		ResolutionNote:   p.ResolutionNote,
		ResolvedAt:       p.ResolvedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}

	if p.PaymentDate != nil {
		resp.PaymentDate = p.PaymentDate.Format(time.DateOnly)
	}

	return resp
}

func toResponseList(payments []*payment.Payment) []paymentResponse {
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toResponse(p)
	}

	return resp
}
