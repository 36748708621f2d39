// Package persona holds the fixed set of negotiator personalities. A persona
// is a short prompt modifier layered on top of the role and constraints; the
// "None" persona leaves behaviour entirely emergent.
package persona

import "sort"

// Persona is a named prompt modifier.
type Persona struct {
	Name   string
	Prompt string
}

var registry = map[string]Persona{
	"None":        {Name: "None", Prompt: ""},
	"Aggressive":  {Name: "Aggressive", Prompt: "You are an aggressive negotiator."},
	"Fair":        {Name: "Fair", Prompt: "You are a fair negotiator."},
	"Liar":        {Name: "Liar", Prompt: "You are a deceptive negotiator."},
	"Logical":     {Name: "Logical", Prompt: "You are a logical negotiator."},
	"Cooperative": {Name: "Cooperative", Prompt: "You are a cooperative negotiator."},
	"Stubborn":    {Name: "Stubborn", Prompt: "You are a stubborn negotiator."},
	"Desperate":   {Name: "Desperate", Prompt: "You are a desperate negotiator."},
	"Strategic":   {Name: "Strategic", Prompt: "You are a strategic negotiator."},
}

// Get returns the persona for name. The boolean is false for unknown names.
func Get(name string) (Persona, bool) {
	p, ok := registry[name]
	return p, ok
}

// Exists reports whether a persona with the given name is registered.
func Exists(name string) bool {
	_, ok := registry[name]
	return ok
}

// List returns all persona names in sorted order.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
