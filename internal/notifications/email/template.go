package email

import (
	"fmt"
	"maps"

	"truckmarket/internal/types"
)

// TemplateSet maps email kinds to provider template IDs and carries the
// sender identity every email goes out under.
type TemplateSet struct {
	ids    map[types.EmailKind]string
	sender types.SenderIdentity
}

// NewTemplateSet copies ids and returns a TemplateSet.
func NewTemplateSet(ids map[types.EmailKind]string, sender types.SenderIdentity) *TemplateSet {
	return &TemplateSet{ids: maps.Clone(ids), sender: sender}
}

// Resolve returns the template for kind.
func (t *TemplateSet) Resolve(kind types.EmailKind) (string, error) {
	id, ok := t.ids[kind]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, kind)
	}
	return id, nil
}

// Sender is the identity emails are sent from.
func (t *TemplateSet) Sender() types.SenderIdentity {
	return t.sender
}

// Missing lists the known kinds with no template, in declaration order.
func (t *TemplateSet) Missing() []types.EmailKind {
	var out []types.EmailKind
	for _, k := range types.AllEmailKinds {
		if t.ids[k] == "" {
			out = append(out, k)
		}
	}
	return out
}
