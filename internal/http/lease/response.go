package lease

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/lease"
)

type signatureResponse struct {
	Role        lease.Role `json:"role"`
	SignerName  string     `json:"signer_name"`
	SignerEmail string     `json:"signer_email,omitempty"`
	SignedAt    time.Time  `json:"signed_at"`
}

type leaseResponse struct {
	ID                    uuid.UUID           `json:"id"`
	Title                 string              `json:"title"`
	Kind                  lease.Kind          `json:"kind"`
	PropertyRef           string              `json:"property_ref"`
	TenantRef             string              `json:"tenant_ref"`
	TenantName            string              `json:"tenant_name,omitempty"`
	Rent                  int64               `json:"rent"`
	Charges               int64               `json:"charges"`
	Deposit               int64               `json:"deposit"`
	ExpectedAmount        int64               `json:"expected_amount"`
	StartDate             string              `json:"start_date"`
	EndDate               string              `json:"end_date,omitempty"`
	Jurisdiction          string              `json:"jurisdiction,omitempty"`
	Status                lease.Status        `json:"status"`
	Signatures            []signatureResponse `json:"signatures"`
	MissingRoles          []lease.Role        `json:"missing_roles"`
	AllSignaturesComplete bool                `json:"all_signatures_complete"`
	HasDocument           bool                `json:"has_document"`
	SignedAt              *time.Time          `json:"signed_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             *time.Time          `json:"updated_at,omitempty"`
}

type signResponse struct {
	Lease                 leaseResponse `json:"lease"`
	AllSignaturesComplete bool          `json:"all_signatures_complete"`
	Finalized             bool          `json:"finalized"`
}

func toResponse(l *lease.Lease) leaseResponse {
	resp := leaseResponse{
		ID:                    l.ID,
		Title:                 l.Title,
		Kind:                  l.Kind,
		PropertyRef:           l.PropertyRef,
		TenantRef:             l.TenantRef,
		TenantName:            l.TenantName,
		Rent:                  l.Rent,
		Charges:               l.Charges,
		Deposit:               l.Deposit,
		ExpectedAmount:        l.ExpectedAmount(),
		StartDate:             l.StartDate.Format(time.DateOnly),
		Jurisdiction:          l.Jurisdiction,
		Status:                l.Status,
		Signatures:            []signatureResponse{},
		MissingRoles:          l.MissingRoles(),
		AllSignaturesComplete: l.AllSignaturesComplete(),
		HasDocument:           l.DocumentKey != "",
		SignedAt:              l.SignedAt,
		CreatedAt:             l.CreatedAt,
		UpdatedAt:             l.UpdatedAt,
	}

	if l.EndDate != nil {
		resp.EndDate = l.EndDate.Format(time.DateOnly)
	}

	for _, role := range lease.RequiredRoles(l.Kind) {
		if sig := l.Signatures[role]; sig != nil {
			resp.Signatures = append(resp.Signatures, signatureResponse{
				Role:        sig.Role,
				SignerName:  sig.SignerName,
				SignerEmail: sig.SignerEmail,
				SignedAt:    sig.SignedAt,
			})
		}
	}

	return resp
}

func toResponseList(leases []*lease.Lease) []leaseResponse {
	resp := make([]leaseResponse, len(leases))
	for i, l := range leases {
		resp[i] = toResponse(l)
	}

	return resp
}
