package importer

import (
	"sort"
	"strings"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// Preset is a named Mapping for a known bank export layout.
type Preset struct {
	Name        string
	Description string
	Mapping     model.Mapping
}

// Registry holds named presets.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry creates an empty preset registry.
func NewRegistry() *Registry {
	return &Registry{presets: make(map[string]Preset)}
}

// Register adds a preset. Panics on duplicate name.
func (r *Registry) Register(p Preset) {
	key := strings.ToLower(p.Name)
	if _, ok := r.presets[key]; ok {
		panic("duplicate import preset: " + key)
	}
	r.presets[key] = p
}

// Get returns the preset for name, or nil.
func (r *Registry) Get(name string) *Preset {
	p, ok := r.presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return &p
}

// Names returns registered preset names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for _, p := range r.presets {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in presets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Preset{
		Name:        "chase",
		Description: "Chase checking CSV export",
		Mapping: model.Mapping{
			Date:        "Posting Date",
			Amount:      "Amount",
			Description: "Description",
			DateFormat:  "MM/dd/yyyy",
		},
	})
	r.Register(Preset{
		Name:        "generic-debit-credit",
		Description: "Separate debit and credit columns, credit is money in",
		Mapping: model.Mapping{
			Date:                     "Date",
			Description:              "Description",
			Debit:                    "Debit",
			Credit:                   "Credit",
			AmountIsCreditMinusDebit: true,
		},
	})
	return r
}
