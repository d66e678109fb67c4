package sim

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// ParamKind is the value type of a parameter.
type ParamKind int

const (
	BoolParam ParamKind = iota
	IntParam
	DoubleParam
	StringParam
	TimeParam
)

var paramKindNames = map[ParamKind]string{
	BoolParam:   "bool",
	IntParam:    "int",
	DoubleParam: "double",
	StringParam: "string",
	TimeParam:   "time",
}

func (k ParamKind) String() string {
	if n, ok := paramKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ParamKind(%d)", int(k))
}

// ParamDecl declares a parameter of a module type. Default is the textual
// default value; a non-string parameter with an empty Default must be
// supplied at construction. Volatile parameters are re-resolved at the start
// of every run after the first.
type ParamDecl struct {
	Name     string
	Kind     ParamKind
	Default  string
	Volatile bool
	// Required rejects construction without a supplied value even when the
	// kind has a usable empty default (strings).
	Required bool
	Unit     string
	Doc      string
}

// NeedsValue reports whether construction fails unless a value is supplied.
// Numeric, bool and time parameters without a default always need one; a
// string without a default resolves to "" unless Required is set.
func (d ParamDecl) NeedsValue() bool {
	return d.Required || (d.Default == "" && d.Kind != StringParam)
}

// Param is a resolved or not-yet-resolved parameter slot.
type Param struct {
	decl ParamDecl
	expr string
	dist *distribution

	resolved bool
	b        bool
	i        int64
	d        float64
	s        string
	t        Time
}

// newParam parses raw, or the declared default when raw was not supplied.
// Values are checked here; random draws happen in resolve.
func newParam(d ParamDecl, raw string, supplied bool) (*Param, error) {
	if !supplied {
		if d.NeedsValue() {
			return nil, fmt.Errorf("parameter %q: %w", d.Name, ErrParameterUnset)
		}
		raw = d.Default
	}
	p := &Param{decl: d, expr: strings.TrimSpace(raw)}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Param) formatErr(err error) error {
	return fmt.Errorf("parameter %q (%s) = %q: %v: %w", p.decl.Name, p.decl.Kind, p.expr, err, ErrParameterFormat)
}

func (p *Param) parse() error {
	switch p.decl.Kind {
	case BoolParam:
		v, err := strconv.ParseBool(p.expr)
		if err != nil {
			return p.formatErr(err)
		}
		p.b = v
	case StringParam:
		p.s = unquote(p.expr)
	case IntParam, DoubleParam, TimeParam:
		dist, ok, err := parseDistribution(p.expr, p.decl.Kind)
		if err != nil {
			return p.formatErr(err)
		}
		if ok {
			p.dist = dist
			return nil
		}
		return p.parseScalar()
	default:
		return p.formatErr(fmt.Errorf("unsupported kind"))
	}
	return nil
}

func (p *Param) parseScalar() error {
	switch p.decl.Kind {
	case IntParam:
		v, err := strconv.ParseInt(p.expr, 10, 64)
		if err != nil {
			return p.formatErr(err)
		}
		p.i = v
	case DoubleParam:
		v, err := strconv.ParseFloat(p.expr, 64)
		if err != nil {
			return p.formatErr(err)
		}
		p.d = v
	case TimeParam:
		v, err := ParseTime(p.expr)
		if err != nil {
			return p.formatErr(err)
		}
		p.t = v
	}
	return nil
}

// resolve fixes the value. Literal values need no work; distributions draw
// from rng.
func (p *Param) resolve(rng *rand.Rand) error {
	if p.dist != nil {
		x := p.dist.draw(rng)
		switch p.decl.Kind {
		case IntParam:
			p.i = int64(math.Round(x))
		case DoubleParam:
			p.d = x
		case TimeParam:
			if x < 0 {
				x = 0
			}
			p.t = FromSeconds(x)
		}
	}
	p.resolved = true
	return nil
}

func (p *Param) Name() string     { return p.decl.Name }
func (p *Param) Kind() ParamKind  { return p.decl.Kind }
func (p *Param) Volatile() bool   { return p.decl.Volatile }
func (p *Param) Expr() string     { return p.expr }
func (p *Param) IsResolved() bool { return p.resolved }

// IsRandom reports whether the parameter is a distribution expression.
func (p *Param) IsRandom() bool { return p.dist != nil }

// Value returns the resolved value as bool, int64, float64, string or Time.
func (p *Param) Value() any {
	switch p.decl.Kind {
	case BoolParam:
		return p.b
	case IntParam:
		return p.i
	case DoubleParam:
		return p.d
	case TimeParam:
		return p.t
	}
	return p.s
}

// String returns the resolved value in textual form.
func (p *Param) String() string {
	if p.decl.Kind == StringParam {
		return strconv.Quote(p.s)
	}
	return fmt.Sprint(p.Value())
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

// distribution is a random expression: uniform(a,b), exponential(mean) or
// normal(mean,stddev). Arguments of time parameters are durations; they are
// kept in seconds.
type distribution struct {
	name string
	a, b float64
}

func parseDistribution(expr string, kind ParamKind) (*distribution, bool, error) {
	open := strings.IndexByte(expr, '(')
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return nil, false, nil
	}
	name := strings.TrimSpace(expr[:open])
	var args []float64
	for _, raw := range strings.Split(expr[open+1:len(expr)-1], ",") {
		raw = strings.TrimSpace(raw)
		var v float64
		var err error
		if kind == TimeParam {
			var t Time
			t, err = ParseTime(raw)
			v = t.Seconds()
		} else {
			v, err = strconv.ParseFloat(raw, 64)
		}
		if err != nil {
			return nil, false, fmt.Errorf("%s argument %q: %v", name, raw, err)
		}
		args = append(args, v)
	}

	d := &distribution{name: name}
	switch name {
	case "uniform":
		if len(args) != 2 || args[0] > args[1] {
			return nil, false, fmt.Errorf("uniform needs two arguments a <= b")
		}
		d.a, d.b = args[0], args[1]
	case "exponential":
		if len(args) != 1 || args[0] <= 0 {
			return nil, false, fmt.Errorf("exponential needs one positive mean")
		}
		d.a = args[0]
	case "normal":
		if len(args) != 2 || args[1] < 0 {
			return nil, false, fmt.Errorf("normal needs a mean and a non-negative stddev")
		}
		d.a, d.b = args[0], args[1]
	default:
		return nil, false, fmt.Errorf("unknown distribution %q", name)
	}
	return d, true, nil
}

func (d *distribution) draw(rng *rand.Rand) float64 {
	switch d.name {
	case "uniform":
		return d.a + rng.Float64()*(d.b-d.a)
	case "exponential":
		return rng.ExpFloat64() * d.a
	case "normal":
		return d.a + rng.NormFloat64()*d.b
	}
	panic(fmt.Sprintf("unknown distribution %q", d.name))
}

// Params returns the module's parameters in declaration order.
func (m *Module) Params() []*Param {
	out := make([]*Param, 0, len(m.paramOrder))
	for _, name := range m.paramOrder {
		out = append(out, m.params[name])
	}
	return out
}

// Par returns the named parameter.
func (m *Module) Par(name string) (*Param, error) {
	p, ok := m.params[name]
	if !ok {
		return nil, fmt.Errorf("%s: parameter %q: %w", m.FullPath(), name, ErrUnknownParameter)
	}
	return p, nil
}

func (m *Module) parOfKind(name string, kinds ...ParamKind) (*Param, error) {
	p, err := m.Par(name)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if p.decl.Kind == k {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s: parameter %q is %s, not %s: %w", m.FullPath(), name, p.decl.Kind, kinds[0], ErrTypeMismatch)
}

func (m *Module) ParBool(name string) (bool, error) {
	p, err := m.parOfKind(name, BoolParam)
	if err != nil {
		return false, err
	}
	return p.b, nil
}

func (m *Module) ParInt(name string) (int64, error) {
	p, err := m.parOfKind(name, IntParam)
	if err != nil {
		return 0, err
	}
	return p.i, nil
}

// ParDouble also accepts int parameters.
func (m *Module) ParDouble(name string) (float64, error) {
	p, err := m.parOfKind(name, DoubleParam, IntParam)
	if err != nil {
		return 0, err
	}
	if p.decl.Kind == IntParam {
		return float64(p.i), nil
	}
	return p.d, nil
}

func (m *Module) ParString(name string) (string, error) {
	p, err := m.parOfKind(name, StringParam)
	if err != nil {
		return "", err
	}
	return p.s, nil
}

func (m *Module) ParTime(name string) (Time, error) {
	p, err := m.parOfKind(name, TimeParam)
	if err != nil {
		return 0, err
	}
	return p.t, nil
}

// Redraw re-resolves a volatile parameter from its stream. It is
// a no-op for parameters that are not volatile.
func (m *Module) Redraw(name string) error {
	p, err := m.Par(name)
	if err != nil {
		return err
	}
	if !p.decl.Volatile {
		return nil
	}
	return p.resolve(m.paramRNG(name))
}

// paramRNG returns the parameter's own random stream.
func (m *Module) paramRNG(name string) *rand.Rand {
	return m.sim.RNG(StreamParamPrefix + m.FullPath() + "." + name)
}

// resolveVolatile re-resolves every volatile parameter in the tree.
func (s *Simulation) resolveVolatile() error {
	var err error
	s.Walk(func(c Component) bool {
		m := c.module()
		for _, name := range m.paramOrder {
			p := m.params[name]
			if !p.decl.Volatile {
				continue
			}
			if err = p.resolve(m.paramRNG(name)); err != nil {
				err = fmt.Errorf("%s: %w", m.FullPath(), err)
				return false
			}
		}
		return true
	})
	return err
}
