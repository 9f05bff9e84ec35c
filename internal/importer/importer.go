package importer

import (
	"io"

	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

// Bank names a statement layout. BankAuto detects it from the header row.
type Bank string

const (
	BankAuto Bank = "auto"
)

type Importer interface {
	Parse(r io.Reader) ([]payment.StatementLine, error)
}
