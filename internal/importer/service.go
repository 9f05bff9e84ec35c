package importer

import (
	"fmt"
	"io"

	"github.com/MrJamesThe3rd/loyer/internal/importer/frbank"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type Service struct {
	auto Importer
}

func NewService() *Service {
	p, _ := frbank.NewParser()

	return &Service{auto: p}
}

// Import reads a bank statement. An empty bank means auto-detection.
func (s *Service) Import(bank Bank, r io.Reader) ([]payment.StatementLine, error) {
	if bank == "" || bank == BankAuto {
		return s.auto.Parse(r)
	}

	p, err := frbank.NewParser(string(bank))
	if err != nil {
		return nil, fmt.Errorf("unknown bank: %s", bank)
	}

	return p.Parse(r)
}

// Banks lists the layouts accepted by Import besides BankAuto.
func Banks() []Bank {
	names := frbank.ProfileNames()

	banks := make([]Bank, len(names))
	for i, n := range names {
		banks[i] = Bank(n)
	}

	return banks
}
