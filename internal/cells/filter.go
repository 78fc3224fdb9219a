package cells

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// Cell type filter names.
const (
	SingleOccupancy   = "single occupancy"
	MultipleOccupancy = "multiple occupancy"
)

// cellTypes is the closed set of capacity predicates. Keys are lower case.
var cellTypes = []struct {
	name       string
	aliases    []string
	expression string
}{
	{name: SingleOccupancy, aliases: []string{"so"}, expression: "capacity == 1"},
	{name: MultipleOccupancy, aliases: []string{"mo"}, expression: "capacity > 1"},
}

// Predicate is a compiled cell-type filter.
type Predicate struct {
	Name       string
	Expression string
	program    cel.Program
}

// Match evaluates the predicate against one cell.
func (p *Predicate) Match(cell domain.Cell) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		"capacity":  int64(cell.Capacity),
		"occupants": int64(cell.NoOfOccupants),
		"spaces":    int64(cell.Spaces()),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate cell type %s: %w", p.Name, err)
	}
	matched, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("cell type %s returned %v, not bool", p.Name, out.Type())
	}
	return bool(matched), nil
}

// Filters holds the compiled cell-type predicates.
type Filters struct {
	env        *cel.Env
	predicates map[string]*Predicate
}

// NewFilters compiles every cell-type predicate. It fails if any expression does not
// type-check to bool.
func NewFilters() (*Filters, error) {
	env, err := cel.NewEnv(
		cel.Variable("capacity", cel.IntType),
		cel.Variable("occupants", cel.IntType),
		cel.Variable("spaces", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	f := &Filters{
		env:        env,
		predicates: make(map[string]*Predicate),
	}

	for _, ct := range cellTypes {
		p, err := f.compile(ct.name, ct.expression)
		if err != nil {
			return nil, err
		}
		f.predicates[ct.name] = p
		for _, alias := range ct.aliases {
			f.predicates[alias] = p
		}
	}
	return f, nil
}

func (f *Filters) compile(name, expression string) (*Predicate, error) {
	ast, issues := f.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile cell type %s: %w", name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("cell type %s: expression must return bool, got %v", name, ast.OutputType())
	}

	program, err := f.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for cell type %s: %w", name, err)
	}
	return &Predicate{Name: name, Expression: expression, program: program}, nil
}

// Lookup returns the predicate for a filter name. An empty name returns nil, meaning
// every cell is kept. Unknown names are invalid input.
func (f *Filters) Lookup(name string) (*Predicate, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, nil
	}

	p, ok := f.predicates[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown cell type %q", domain.ErrInvalidInput, name)
	}
	return p, nil
}

// Apply keeps the cells matching the named filter, preserving order.
func (f *Filters) Apply(cells []domain.Cell, name string) ([]domain.Cell, error) {
	p, err := f.Lookup(name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return cells, nil
	}

	out := make([]domain.Cell, 0, len(cells))
	for _, c := range cells {
		ok, err := p.Match(c)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Names returns the canonical filter names.
func (f *Filters) Names() []string {
	names := make([]string, 0, len(cellTypes))
	for _, ct := range cellTypes {
		names = append(names, ct.name)
	}
	return names
}
