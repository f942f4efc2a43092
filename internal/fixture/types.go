package fixture

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Action names understood in requests.
const (
	ActionInstall = "install"
)

// Case is one concrete test instance generated from a fixture file.
type Case struct {
	// Name is the display name derived from the fixture path.
	Name string `yaml:"-"`

	// Path is the fixture file the case was generated from.
	Path string `yaml:"-"`

	// Index is the position of the case within its fixture file.
	Index int `yaml:"-"`

	// Available lists the packages materialized in the scratch index.
	Available []PackageSpec `yaml:"available,omitempty"`

	// Request is the ordered list of actions to replay.
	Request []Request `yaml:"request,omitempty"`

	// Transaction holds the expected outcome of each request, one-to-one.
	Transaction []Outcome `yaml:"transaction,omitempty"`

	// Skip marks the case as an expected failure.
	Skip bool `yaml:"skip,omitempty"`
}

// String renders the case for display-name fallbacks and diagnostics.
func (c Case) String() string {
	return fmt.Sprintf("{available:%v request:%v transaction:%v skip:%t}",
		c.Available, c.Request, c.Transaction, c.Skip)
}

// PackageSpec describes a package to build into the scratch index.
type PackageSpec struct {
	Name    string              `yaml:"name"`
	Version string              `yaml:"version"`
	Depends []string            `yaml:"depends,omitempty"`
	Extras  map[string][]string `yaml:"extras,omitempty"`
}

// String returns the compact form of the spec.
func (p PackageSpec) String() string {
	s := p.Name + " " + p.Version
	if len(p.Depends) > 0 {
		s += "; depends " + joinComma(p.Depends)
	}
	return s
}

// UnmarshalYAML accepts either the compact string form or a mapping.
func (p *PackageSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		spec, err := ParsePackageSpec(s)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*p = spec
		return nil
	case yaml.MappingNode:
		// Alias type drops the UnmarshalYAML method to avoid recursion.
		type plain PackageSpec
		var raw plain
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.Name == "" || raw.Version == "" {
			return fmt.Errorf("line %d: package needs both name and version", node.Line)
		}
		if raw.Depends == nil {
			raw.Depends = []string{}
		}
		if raw.Extras == nil {
			raw.Extras = map[string][]string{}
		}
		*p = PackageSpec(raw)
		return nil
	default:
		return fmt.Errorf("line %d: package must be a string or a mapping", node.Line)
	}
}

// Request maps a single action name to its argument.
// It is kept as a raw mapping so the runner can report malformed requests
// as case failures.
type Request map[string]any

// Action returns the only action of the request.
// ok is false when the request does not hold exactly one action.
func (r Request) Action() (name string, arg any, ok bool) {
	if len(r) != 1 {
		return "", nil, false
	}
	for k, v := range r {
		return k, v, true
	}
	return "", nil, false
}

// Actions returns the action names in sorted order.
func (r Request) Actions() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// OutcomeKind identifies which shape an Outcome has.
type OutcomeKind string

// Outcome kinds.
const (
	KindNone        OutcomeKind = ""
	KindInstall     OutcomeKind = "install"
	KindConflicting OutcomeKind = "conflicting"

	// KindUnsupported holds an outcome shape the runner cannot produce yet,
	// such as uninstall. It never equals another outcome.
	KindUnsupported OutcomeKind = "unsupported"
)

// Outcome is the structured effect of one request.
type Outcome struct {
	Kind        OutcomeKind
	Install     []string
	Conflicting []Conflict

	// Raw is the decoded mapping of an unsupported outcome.
	Raw map[string]any
}

// Conflict is one "<package> <version> requires <selector>" clause.
type Conflict struct {
	RequiredBy string `yaml:"required_by" json:"required_by"`
	Selector   string `yaml:"selector" json:"selector"`
}

// Installed builds an install outcome.
func Installed(dists ...string) Outcome {
	if dists == nil {
		dists = []string{}
	}
	return Outcome{Kind: KindInstall, Install: dists}
}

// Conflicting builds a conflicting outcome.
func Conflicting(conflicts ...Conflict) Outcome {
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	return Outcome{Kind: KindConflicting, Conflicting: conflicts}
}

// Equal reports structural equality. Nil and empty lists of the same kind
// are equal.
func (o Outcome) Equal(other Outcome) bool {
	if o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case KindInstall:
		return slices.Equal(o.Install, other.Install)
	case KindConflicting:
		return slices.Equal(o.Conflicting, other.Conflicting)
	case KindUnsupported:
		return false
	default:
		return true
	}
}

// Map returns the fixture form of the outcome.
func (o Outcome) Map() map[string]any {
	switch o.Kind {
	case KindInstall:
		list := make([]any, len(o.Install))
		for i, d := range o.Install {
			list[i] = d
		}
		return map[string]any{string(KindInstall): list}
	case KindConflicting:
		list := make([]any, len(o.Conflicting))
		for i, c := range o.Conflicting {
			list[i] = map[string]any{
				"required_by": c.RequiredBy,
				"selector":    c.Selector,
			}
		}
		return map[string]any{string(KindConflicting): list}
	case KindUnsupported:
		return o.Raw
	default:
		return map[string]any{}
	}
}

// String renders the outcome the way it would be written in a fixture.
func (o Outcome) String() string {
	switch o.Kind {
	case KindInstall:
		return fmt.Sprintf("{install: %v}", o.Install)
	case KindConflicting:
		return fmt.Sprintf("{conflicting: %v}", o.Conflicting)
	case KindUnsupported:
		return fmt.Sprintf("%v", o.Raw)
	default:
		return "{}"
	}
}

// MarshalYAML writes the fixture form.
func (o Outcome) MarshalYAML() (any, error) {
	return o.Map(), nil
}

// UnmarshalYAML decodes {install: [...]}, {conflicting: [...]} or {}.
// A mapping with any other key decodes to a KindUnsupported outcome so the
// case fails when replayed rather than when loaded.
func (o *Outcome) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: outcome must be a mapping: %w", node.Line, err)
	}

	for key := range raw {
		switch OutcomeKind(key) {
		case KindInstall, KindConflicting:
		default:
			var values map[string]any
			if err := node.Decode(&values); err != nil {
				return fmt.Errorf("line %d: %w", node.Line, err)
			}
			*o = Outcome{Kind: KindUnsupported, Raw: values}
			return nil
		}
	}
	if len(raw) > 1 {
		return fmt.Errorf("line %d: outcome must declare at most one of install, conflicting", node.Line)
	}

	*o = Outcome{}
	for key, value := range raw {
		switch OutcomeKind(key) {
		case KindInstall:
			var dists []string
			if err := value.Decode(&dists); err != nil {
				return fmt.Errorf("line %d: install: %w", value.Line, err)
			}
			*o = Installed(dists...)
		case KindConflicting:
			var conflicts []Conflict
			if err := value.Decode(&conflicts); err != nil {
				return fmt.Errorf("line %d: conflicting: %w", value.Line, err)
			}
			*o = Conflicting(conflicts...)
		}
	}
	return nil
}
