package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/MrJamesThe3rd/loyer/internal/lease"
	"github.com/MrJamesThe3rd/loyer/internal/money"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

// Landlord identifies the issuer printed on contracts and receipts.
type Landlord struct {
	Name    string
	Address string
	City    string
}

const (
	pageWidth  = 170.0
	lineHeight = 6.0
)

var months = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

func frenchDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

func frenchPeriod(t time.Time) string {
	return fmt.Sprintf("%s %d", months[t.Month()-1], t.Year())
}

var roleLabels = map[lease.Role]string{
	lease.RoleOwner:    "Le bailleur",
	lease.RoleTenant:   "Le locataire",
	lease.RoleRoommate: "Le colocataire",
}

var methodLabels = map[payment.Method]string{
	payment.MethodBankTransfer: "virement bancaire",
	payment.MethodCash:         "espèces",
	payment.MethodCard:         "carte bancaire",
	payment.MethodCheck:        "chèque",
	payment.MethodDirectDebit:  "prélèvement",
}

// page wraps fpdf with the cp1252 translation the core fonts need for accents and "€".
type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPage(title string, created time.Time) *page {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetTitle(title, true)
	pdf.SetCreator("loyer", true)
	pdf.SetCreationDate(created)
	pdf.AddPage()

	return &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (p *page) heading(text string) {
	p.pdf.SetFont("Helvetica", "B", 16)
	p.pdf.CellFormat(pageWidth, 10, p.tr(text), "", 1, "C", false, 0, "")
	p.pdf.Ln(4)
}

func (p *page) section(text string) {
	p.pdf.Ln(3)
	p.pdf.SetFont("Helvetica", "B", 11)
	p.pdf.CellFormat(pageWidth, lineHeight, p.tr(text), "B", 1, "L", false, 0, "")
	p.pdf.Ln(1)
}

func (p *page) row(label, value string) {
	p.pdf.SetFont("Helvetica", "", 10)
	p.pdf.CellFormat(60, lineHeight, p.tr(label), "", 0, "L", false, 0, "")
	p.pdf.SetFont("Helvetica", "B", 10)
	p.pdf.CellFormat(pageWidth-60, lineHeight, p.tr(value), "", 1, "L", false, 0, "")
}

func (p *page) paragraph(text string) {
	p.pdf.SetFont("Helvetica", "", 10)
	p.pdf.MultiCell(pageWidth, 5, p.tr(text), "", "J", false)
}

func (p *page) output(w io.Writer) error {
	if err := p.pdf.Error(); err != nil {
		return err
	}

	return p.pdf.Output(w)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}

	return s
}

// RenderContract writes the lease agreement with every captured signature.
func RenderContract(w io.Writer, l *lease.Lease, landlord Landlord) error {
	created := l.CreatedAt
	if l.SignedAt != nil {
		created = *l.SignedAt
	}

	title := "Contrat de location"
	if l.Kind == lease.KindColocation {
		title = "Contrat de colocation"
	}

	p := newPage(title, created)
	p.heading(title)
	p.paragraph(l.Title)

	p.section("Les parties")
	p.row("Bailleur", orDash(landlord.Name))
	p.row("Adresse du bailleur", orDash(strings.TrimSpace(landlord.Address+" "+landlord.City)))
	p.row("Locataire", orDash(l.TenantName))

	p.section("Le logement et les conditions")
	p.row("Logement", l.PropertyRef)
	p.row("Loyer mensuel", money.Format(l.Rent))
	p.row("Charges mensuelles", money.Format(l.Charges))
	p.row("Total mensuel", money.Format(l.ExpectedAmount()))
	p.row("Dépôt de garantie", money.Format(l.Deposit))
	p.row("Prise d'effet", frenchDate(l.StartDate))

	if l.EndDate != nil {
		p.row("Fin du bail", frenchDate(*l.EndDate))
	} else {
		p.row("Fin du bail", "tacite reconduction")
	}

	p.row("Juridiction compétente", orDash(l.Jurisdiction))

	p.section("Signatures")

	for _, role := range lease.RequiredRoles(l.Kind) {
		sig := l.Signatures[role]
		if sig == nil {
			p.row(roleLabels[role], "non signé")
			continue
		}

		p.row(roleLabels[role], fmt.Sprintf("%s, le %s", sig.SignerName, frenchDate(sig.SignedAt)))
		p.signatureImage(string(role), sig)
	}

	return p.output(w)
}

func (p *page) signatureImage(name string, sig *lease.Signature) {
	imageType := "PNG"
	if sig.ImageType == "image/jpeg" {
		imageType = "JPG"
	}

	opts := fpdf.ImageOptions{ImageType: imageType}
	info := p.pdf.RegisterImageOptionsReader("signature-"+name, opts, bytes.NewReader(sig.Image))

	if info == nil || p.pdf.Err() {
		return
	}

	p.pdf.ImageOptions("signature-"+name, p.pdf.GetX()+60, p.pdf.GetY(), 50, 0, true, opts, 0, "")
	p.pdf.Ln(2)
}

// receiptTitle follows French practice: a quittance only for a fully settled rent.
func receiptTitle(s payment.Status) string {
	if s == payment.StatusPartial {
		return "Reçu de paiement partiel"
	}

	return "Quittance de loyer"
}

// RenderReceipt writes the receipt of a settled payment.
func RenderReceipt(w io.Writer, pay *payment.Payment, landlord Landlord) error {
	if !pay.Status.ReceiptEligible() {
		return fmt.Errorf("no receipt for a %s payment", pay.Status)
	}

	issued := pay.CreatedAt
	if pay.ResolvedAt != nil {
		issued = *pay.ResolvedAt
	}

	title := receiptTitle(pay.Status)

	p := newPage(title, issued)
	p.heading(title)
	p.row("Numéro", pay.ReceiptNumber)
	p.row("Période", frenchPeriod(pay.DueDate))

	p.section("Bailleur")
	p.row("Nom", orDash(landlord.Name))
	p.row("Adresse", orDash(strings.TrimSpace(landlord.Address+" "+landlord.City)))

	p.section("Locataire")
	p.row("Nom", orDash(pay.TenantName))
	p.row("Qualité", string(pay.TenantType))
	p.row("Logement", pay.PropertyRef)

	p.section("Règlement")
	p.row("Loyer et charges dus", money.Format(pay.ExpectedAmount))
	p.row("Montant reçu", money.Format(pay.PaidAmount))

	switch balance := pay.Balance(); {
	case balance > 0:
		p.row("Reste dû", money.Format(balance))
	case balance < 0:
		p.row("Trop-perçu", money.Format(-balance))
	}

	if pay.PaymentDate != nil {
		p.row("Date du paiement", frenchDate(*pay.PaymentDate))
	}

	p.row("Mode de paiement", orDash(methodLabels[pay.Method]))

	p.pdf.Ln(6)

	if pay.Status == payment.StatusPartial {
		p.paragraph(fmt.Sprintf(
			"Je soussigné(e) %s reconnais avoir reçu de %s la somme de %s au titre d'un paiement partiel du loyer de %s. "+
				"Ce reçu ne vaut pas quittance.",
			orDash(landlord.Name), orDash(pay.TenantName), money.Format(pay.PaidAmount), frenchPeriod(pay.DueDate)))
	} else {
		p.paragraph(fmt.Sprintf(
			"Je soussigné(e) %s déclare avoir reçu de %s la somme de %s au titre du loyer et des charges de %s, "+
				"et lui en donne quittance, sous réserve de tous mes droits.",
			orDash(landlord.Name), orDash(pay.TenantName), money.Format(pay.PaidAmount), frenchPeriod(pay.DueDate)))
	}

	p.pdf.Ln(4)
	p.paragraph(fmt.Sprintf("Fait à %s, le %s", orDash(landlord.City), frenchDate(issued)))

	return p.output(w)
}
