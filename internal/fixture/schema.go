package fixture

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is one problem found in a fixture file.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
}

// Validation error codes.
const (
	CodeRead   = "F001" // File could not be read
	CodeSchema = "F002" // File does not match the fixture schema
	CodeDecode = "F003" // File matches the schema but cases do not decode
	CodeCount  = "F004" // Request and transaction counts differ
	CodeAction = "F005" // Request does not hold exactly one known action
)

// schema holds the compiled #Fixture definition.
// CUE values are not safe for concurrent use, so access is serialized.
type schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

var (
	fixtureSchema     *schema
	fixtureSchemaErr  error
	fixtureSchemaOnce sync.Once
)

func loadSchema() (*schema, error) {
	fixtureSchemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			fixtureSchemaErr = fmt.Errorf("compiling fixture schema: %w", err)
			return
		}
		fixtureSchema = &schema{
			ctx: ctx,
			def: v.LookupPath(cue.ParsePath("#Fixture")),
		}
	})
	return fixtureSchema, fixtureSchemaErr
}

// CheckSchema validates raw fixture content against the #Fixture schema.
// It returns one message per CUE error.
func CheckSchema(filename string, data []byte) ([]string, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}

	f, err := cueyaml.Extract(filename, data)
	if err != nil {
		return []string{err.Error()}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.BuildFile(f)
	if err := v.Err(); err != nil {
		return errorMessages(err), nil
	}
	if err := s.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return errorMessages(err), nil
	}
	return nil, nil
}

func errorMessages(err error) []string {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msgs = append(msgs, cueerrors.Details(e, nil))
	}
	if len(msgs) == 0 {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// Validate checks a fixture file: schema first, then the semantic rules the
// runner would otherwise only discover while replaying.
func Validate(file, baseName string, actions map[string]bool) []ValidationError {
	data, err := os.ReadFile(file)
	if err != nil {
		return []ValidationError{{File: file, Code: CodeRead, Message: err.Error()}}
	}

	msgs, err := CheckSchema(file, data)
	if err != nil {
		return []ValidationError{{File: file, Code: CodeSchema, Message: err.Error()}}
	}
	if len(msgs) > 0 {
		errs := make([]ValidationError, len(msgs))
		for i, m := range msgs {
			errs[i] = ValidationError{File: file, Code: CodeSchema, Message: m}
		}
		return errs
	}

	cases, err := Parse(data, baseName)
	if err != nil {
		return []ValidationError{{File: file, Code: CodeDecode, Message: err.Error()}}
	}

	var errs []ValidationError
	for _, c := range cases {
		if len(c.Request) != len(c.Transaction) {
			errs = append(errs, ValidationError{
				File:    file,
				Code:    CodeCount,
				Message: fmt.Sprintf("%s: %d requests but %d transaction entries", c.Name, len(c.Request), len(c.Transaction)),
			})
		}
		for i, req := range c.Request {
			name, _, ok := req.Action()
			if !ok {
				errs = append(errs, ValidationError{
					File:    file,
					Code:    CodeAction,
					Message: fmt.Sprintf("%s: request[%d]: expected only one action, got %v", c.Name, i, req.Actions()),
				})
				continue
			}
			if actions != nil && !actions[name] {
				errs = append(errs, ValidationError{
					File:    file,
					Code:    CodeAction,
					Message: fmt.Sprintf("%s: request[%d]: unsupported action %q", c.Name, i, name),
				})
			}
		}
	}
	return errs
}
