// Package settings stores the owner's quick-actions bar.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Key is the settings row holding the quick-actions configuration.
const Key = "quick_actions"

var (
	ErrNotFound        = errors.New("settings not found")
	ErrVersionConflict = errors.New("settings were changed by someone else")
	ErrInvalidConfig   = errors.New("invalid quick actions configuration")
)

type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionDialog   ActionType = "dialog"
)

// Action is what a quick-action button does. It is either a NavigateAction or a DialogAction.
type Action interface {
	Type() ActionType
	validate() error
}

// NavigateAction opens a page of the application.
type NavigateAction struct {
	Path string
}

func (NavigateAction) Type() ActionType { return ActionNavigate }

func (a NavigateAction) validate() error {
	if !strings.HasPrefix(a.Path, "/") || strings.Contains(a.Path, "//") {
		return fmt.Errorf("navigate path must be an absolute application path, got %q", a.Path)
	}

	return nil
}

// Dialogs the front-end knows how to open.
var Dialogs = []string{"declare_payment", "new_lease", "sign_lease", "schedule_rent", "import_statement"}

// DialogAction opens one of the known dialogs.
type DialogAction struct {
	Dialog string
}

func (DialogAction) Type() ActionType { return ActionDialog }

func (a DialogAction) validate() error {
	for _, d := range Dialogs {
		if d == a.Dialog {
			return nil
		}
	}

	return fmt.Errorf("unknown dialog %q", a.Dialog)
}

type ButtonStyle string

const (
	StyleFilled   ButtonStyle = "filled"
	StyleOutlined ButtonStyle = "outlined"
	StyleText     ButtonStyle = "text"
)

type QuickAction struct {
	ID     string `validate:"required,max=40"`
	Label  string `validate:"required,max=40"`
	Icon   string `validate:"max=40"`
	Action Action
}

type quickActionJSON struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Icon   string     `json:"icon,omitempty"`
	Type   ActionType `json:"type"`
	Path   string     `json:"path,omitempty"`
	Dialog string     `json:"dialog,omitempty"`
}

func (q QuickAction) MarshalJSON() ([]byte, error) {
	out := quickActionJSON{ID: q.ID, Label: q.Label, Icon: q.Icon}

	switch a := q.Action.(type) {
	case NavigateAction:
		out.Type = ActionNavigate
		out.Path = a.Path
	case DialogAction:
		out.Type = ActionDialog
		out.Dialog = a.Dialog
	default:
		return nil, fmt.Errorf("quick action %q has no action", q.ID)
	}

	return json.Marshal(out)
}

func (q *QuickAction) UnmarshalJSON(data []byte) error {
	var in quickActionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	q.ID, q.Label, q.Icon = in.ID, in.Label, in.Icon

	switch in.Type {
	case ActionNavigate:
		q.Action = NavigateAction{Path: in.Path}
	case ActionDialog:
		q.Action = DialogAction{Dialog: in.Dialog}
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidConfig, in.Type)
	}

	return nil
}

// Config is the quick-actions bar. Version increases by one on every save.
type Config struct {
	Version   int           `json:"version"`
	Actions   []QuickAction `json:"actions"`
	Style     ButtonStyle   `json:"style"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

const maxActions = 8

// Default is shown until the owner saves a configuration.
func Default() *Config {
	return &Config{
		Style: StyleFilled,
		Actions: []QuickAction{
			{ID: "validate", Label: "Paiements à valider", Icon: "check", Action: NavigateAction{Path: "/payments?status=pending_validation"}},
			{ID: "declare", Label: "Déclarer un paiement", Icon: "euro", Action: DialogAction{Dialog: "declare_payment"}},
			{ID: "leases", Label: "Baux", Icon: "file", Action: NavigateAction{Path: "/leases"}},
		},
	}
}
