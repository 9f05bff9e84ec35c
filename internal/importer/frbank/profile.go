package frbank

// amountMode determines how amounts are extracted from a row.
type amountMode int

const (
	// amountSingle means one signed column (e.g. "Montant" with value "-10,00").
	amountSingle amountMode = iota
	// amountSplit means separate debit and credit columns (e.g. "Débit euros"/"Crédit euros").
	amountSplit
)

// Profile describes the column layout of one bank's CSV export.
// Column names are compared case-insensitively.
type Profile struct {
	Name       string
	DateCol    string
	LabelCol   string
	AmountMode amountMode
	AmountCol  string // used when AmountMode == amountSingle
	DebitCol   string // used when AmountMode == amountSplit
	CreditCol  string // used when AmountMode == amountSplit
}

func (p Profile) requiredCols() []string {
	cols := []string{p.DateCol, p.LabelCol}

	switch p.AmountMode {
	case amountSingle:
		cols = append(cols, p.AmountCol)
	case amountSplit:
		cols = append(cols, p.DebitCol, p.CreditCol)
	}

	return cols
}

// profiles is tried in order during auto-detection. More specific layouts come
// first so the generic one does not shadow them.
var profiles = []Profile{
	{
		Name:       "credit-agricole",
		DateCol:    "Date",
		LabelCol:   "Libellé",
		AmountMode: amountSplit,
		DebitCol:   "Débit euros",
		CreditCol:  "Crédit euros",
	},
	{
		Name:       "societe-generale",
		DateCol:    "Date de l'opération",
		LabelCol:   "Libellé",
		AmountMode: amountSingle,
		AmountCol:  "Montant de l'opération",
	},
	{
		Name:       "banque-postale",
		DateCol:    "Date",
		LabelCol:   "Libellé",
		AmountMode: amountSingle,
		AmountCol:  "Montant(EUROS)",
	},
	{
		Name:       "boursorama",
		DateCol:    "dateOp",
		LabelCol:   "label",
		AmountMode: amountSingle,
		AmountCol:  "amount",
	},
	{
		Name:       "generic",
		DateCol:    "Date",
		LabelCol:   "Libellé",
		AmountMode: amountSingle,
		AmountCol:  "Montant",
	},
}

// ProfileNames lists the supported export layouts in detection order.
func ProfileNames() []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}

	return names
}
