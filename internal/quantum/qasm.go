package quantum

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// ParseError reports malformed OpenQASM input.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("qasm: line %d: %s", e.Line, e.Msg)
}

// LoadFromFile parses an OpenQASM 2.0 file into a circuit.
func LoadFromFile(path string) (*Circuit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	c, err := ParseQASM(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return c, nil
}

// Save writes the circuit as OpenQASM 2.0, replacing any existing file.
func (c *Circuit) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WriteQASM(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteQASM serializes the circuit. Opaque unitaries have no OpenQASM form.
func (c *Circuit) WriteQASM(w io.Writer) error {
	var b strings.Builder
	b.WriteString("OPENQASM 2.0;\n")
	b.WriteString("include \"qelib1.inc\";\n")
	fmt.Fprintf(&b, "qreg q[%d];\n", c.numQudits)

	for i, op := range c.ops {
		if op.Unitary != nil {
			return fmt.Errorf("operation %d: opaque unitary cannot be written as OpenQASM", i)
		}
		b.WriteString(op.Gate.Name)
		if len(op.Params) > 0 {
			b.WriteByte('(')
			for j, p := range op.Params {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteString(strconv.FormatFloat(p, 'g', 17, 64))
			}
			b.WriteByte(')')
		}
		for j, q := range op.Qudits {
			if j == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "q[%d]", q)
		}
		b.WriteString(";\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// QASM returns the OpenQASM text, or an error for circuits with opaque unitaries.
func (c *Circuit) QASM() (string, error) {
	var b strings.Builder
	if err := c.WriteQASM(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ---------------------------------------------------------------------------
// lexer

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	line int
}

func lex(src string) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	for i < len(src) {
		ch := rune(src[i])
		switch {
		case ch == '\n':
			line++
			i++
		case unicode.IsSpace(ch):
			i++
		case ch == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case ch == '"':
			j := i + 1
			for j < len(src) && src[j] != '"' && src[j] != '\n' {
				j++
			}
			if j >= len(src) || src[j] != '"' {
				return nil, &ParseError{Line: line, Msg: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : j], line: line})
			i = j + 1
		case unicode.IsLetter(ch) || ch == '_':
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], line: line})
			i = j
		case unicode.IsDigit(ch) || (ch == '.' && i+1 < len(src) && unicode.IsDigit(rune(src[i+1]))):
			j := i
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
				k := j + 1
				if k < len(src) && (src[k] == '+' || src[k] == '-') {
					k++
				}
				if k < len(src) && unicode.IsDigit(rune(src[k])) {
					j = k
					for j < len(src) && unicode.IsDigit(rune(src[j])) {
						j++
					}
				}
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], line: line})
			i = j
		case ch == '-' && i+1 < len(src) && src[i+1] == '>':
			toks = append(toks, token{kind: tokSymbol, text: "->", line: line})
			i += 2
		case ch == '=' && i+1 < len(src) && src[i+1] == '=':
			toks = append(toks, token{kind: tokSymbol, text: "==", line: line})
			i += 2
		case strings.ContainsRune("()[]{},;+-*/^", ch):
			toks = append(toks, token{kind: tokSymbol, text: string(ch), line: line})
			i++
		default:
			return nil, &ParseError{Line: line, Msg: fmt.Sprintf("unexpected character %q", ch)}
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line})
	return toks, nil
}

// ---------------------------------------------------------------------------
// expressions

type expr func(env map[string]float64) (float64, error)

var unaryFuncs = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"exp":  math.Exp,
	"ln":   math.Log,
	"sqrt": math.Sqrt,
}

// ---------------------------------------------------------------------------
// parser

type qreg struct {
	offset int
	size   int
}

type gateCall struct {
	name   string
	params []expr
	args   []argRef
	line   int
}

type argRef struct {
	reg   string
	index int // -1 addresses the whole register (or a gate-local argument)
}

type gateDef struct {
	params []string
	args   []string
	body   []gateCall
}

type qasmParser struct {
	toks      []token
	pos       int
	regs      map[string]qreg
	numQudits int
	defs      map[string]*gateDef
	ops       []Operation
}

// ParseQASM parses OpenQASM 2.0 source. Measurements and barriers are skipped;
// classically controlled and non-unitary statements are rejected.
func ParseQASM(src string) (*Circuit, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &qasmParser{toks: toks, regs: make(map[string]qreg), defs: make(map[string]*gateDef)}
	if err := p.parseProgram(); err != nil {
		return nil, err
	}
	return &Circuit{numQudits: p.numQudits, ops: p.ops}, nil
}

func (p *qasmParser) peek() token {
	return p.toks[p.pos]
}

func (p *qasmParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *qasmParser) errorf(t token, format string, args ...interface{}) error {
	return &ParseError{Line: t.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *qasmParser) expect(text string) (token, error) {
	t := p.next()
	if t.kind == tokEOF {
		return t, p.errorf(t, "expected %q, got end of input", text)
	}
	if t.text != text {
		return t, p.errorf(t, "expected %q, got %q", text, t.text)
	}
	return t, nil
}

func (p *qasmParser) expectIdent() (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, p.errorf(t, "expected identifier, got %q", t.text)
	}
	return t, nil
}

func (p *qasmParser) expectInt() (int, error) {
	t := p.next()
	if t.kind != tokNumber {
		return 0, p.errorf(t, "expected integer, got %q", t.text)
	}
	v, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, p.errorf(t, "expected integer, got %q", t.text)
	}
	return v, nil
}

func (p *qasmParser) parseProgram() error {
	if t := p.peek(); t.kind == tokIdent && t.text == "OPENQASM" {
		p.next()
		v := p.next()
		if v.kind != tokNumber || !strings.HasPrefix(v.text, "2") {
			return p.errorf(v, "unsupported OpenQASM version %q", v.text)
		}
		if _, err := p.expect(";"); err != nil {
			return err
		}
	}

	for p.peek().kind != tokEOF {
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
	return nil
}

func (p *qasmParser) parseStatement() error {
	t := p.peek()
	if t.kind != tokIdent {
		return p.errorf(t, "unexpected %q", t.text)
	}

	switch t.text {
	case "include":
		p.next()
		if s := p.next(); s.kind != tokString {
			return p.errorf(s, "expected file name after include")
		}
		_, err := p.expect(";")
		return err
	case "qreg":
		p.next()
		name, size, err := p.parseRegDecl()
		if err != nil {
			return err
		}
		if _, dup := p.regs[name]; dup {
			return p.errorf(t, "register %s redeclared", name)
		}
		if size > MaxQudits-p.numQudits {
			return p.errorf(t, "circuit declares more than %d qubits", MaxQudits)
		}
		p.regs[name] = qreg{offset: p.numQudits, size: size}
		p.numQudits += size
		return nil
	case "creg":
		p.next()
		_, _, err := p.parseRegDecl()
		return err
	case "barrier", "measure":
		return p.skipStatement()
	case "gate":
		p.next()
		return p.parseGateDef()
	case "reset", "if", "opaque":
		return p.errorf(t, "%s statements are not supported", t.text)
	}

	call, err := p.parseGateCall()
	if err != nil {
		return err
	}
	if _, err := p.expect(";"); err != nil {
		return err
	}
	return p.emitTopLevel(call)
}

func (p *qasmParser) parseRegDecl() (string, int, error) {
	name, err := p.expectIdent()
	if err != nil {
		return "", 0, err
	}
	if _, err := p.expect("["); err != nil {
		return "", 0, err
	}
	size, err := p.expectInt()
	if err != nil {
		return "", 0, err
	}
	if size <= 0 {
		return "", 0, p.errorf(name, "register %s must have positive size", name.text)
	}
	if _, err := p.expect("]"); err != nil {
		return "", 0, err
	}
	if _, err := p.expect(";"); err != nil {
		return "", 0, err
	}
	return name.text, size, nil
}

func (p *qasmParser) skipStatement() error {
	for {
		t := p.next()
		if t.kind == tokEOF {
			return p.errorf(t, "missing ';'")
		}
		if t.text == ";" {
			return nil
		}
	}
}

func (p *qasmParser) parseGateDef() error {
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	def := &gateDef{}
	if p.peek().text == "(" {
		p.next()
		for p.peek().text != ")" {
			id, err := p.expectIdent()
			if err != nil {
				return err
			}
			def.params = append(def.params, id.text)
			if p.peek().text == "," {
				p.next()
			}
		}
		p.next()
	}
	for {
		id, err := p.expectIdent()
		if err != nil {
			return err
		}
		def.args = append(def.args, id.text)
		if p.peek().text != "," {
			break
		}
		p.next()
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}
	for p.peek().text != "}" {
		if p.peek().kind == tokEOF {
			return p.errorf(p.peek(), "unterminated gate body for %s", name.text)
		}
		if p.peek().text == "barrier" {
			if err := p.skipStatement(); err != nil {
				return err
			}
			continue
		}
		call, err := p.parseGateCall()
		if err != nil {
			return err
		}
		if _, err := p.expect(";"); err != nil {
			return err
		}
		def.body = append(def.body, call)
	}
	p.next()
	p.defs[name.text] = def
	return nil
}

func (p *qasmParser) parseGateCall() (gateCall, error) {
	name, err := p.expectIdent()
	if err != nil {
		return gateCall{}, err
	}
	call := gateCall{name: name.text, line: name.line}
	if p.peek().text == "(" {
		p.next()
		for p.peek().text != ")" {
			e, err := p.parseExpr()
			if err != nil {
				return gateCall{}, err
			}
			call.params = append(call.params, e)
			if p.peek().text == "," {
				p.next()
			} else if p.peek().text != ")" {
				return gateCall{}, p.errorf(p.peek(), "expected ',' or ')' in parameter list")
			}
		}
		p.next()
	}
	for {
		reg, err := p.expectIdent()
		if err != nil {
			return gateCall{}, err
		}
		ref := argRef{reg: reg.text, index: -1}
		if p.peek().text == "[" {
			p.next()
			idx, err := p.expectInt()
			if err != nil {
				return gateCall{}, err
			}
			if _, err := p.expect("]"); err != nil {
				return gateCall{}, err
			}
			ref.index = idx
		}
		call.args = append(call.args, ref)
		if p.peek().text != "," {
			break
		}
		p.next()
	}
	return call, nil
}

func (p *qasmParser) parseExpr() (expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().text == "+" || p.peek().text == "-" {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l := left
		if op == "+" {
			left = func(env map[string]float64) (float64, error) {
				a, err := l(env)
				if err != nil {
					return 0, err
				}
				b, err := right(env)
				return a + b, err
			}
		} else {
			left = func(env map[string]float64) (float64, error) {
				a, err := l(env)
				if err != nil {
					return 0, err
				}
				b, err := right(env)
				return a - b, err
			}
		}
	}
	return left, nil
}

func (p *qasmParser) parseTerm() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().text == "*" || p.peek().text == "/" {
		opTok := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l := left
		if opTok.text == "*" {
			left = func(env map[string]float64) (float64, error) {
				a, err := l(env)
				if err != nil {
					return 0, err
				}
				b, err := right(env)
				return a * b, err
			}
		} else {
			line := opTok.line
			left = func(env map[string]float64) (float64, error) {
				a, err := l(env)
				if err != nil {
					return 0, err
				}
				b, err := right(env)
				if err != nil {
					return 0, err
				}
				if b == 0 {
					return 0, &ParseError{Line: line, Msg: "division by zero"}
				}
				return a / b, nil
			}
		}
	}
	return left, nil
}

func (p *qasmParser) parseUnary() (expr, error) {
	if p.peek().text == "-" {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return func(env map[string]float64) (float64, error) {
			v, err := inner(env)
			return -v, err
		}, nil
	}
	if p.peek().text == "+" {
		p.next()
		return p.parseUnary()
	}
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.peek().text == "^" {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return func(env map[string]float64) (float64, error) {
			a, err := base(env)
			if err != nil {
				return 0, err
			}
			b, err := exp(env)
			return math.Pow(a, b), err
		}, nil
	}
	return base, nil
}

func (p *qasmParser) parseAtom() (expr, error) {
	t := p.next()
	switch {
	case t.kind == tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %q", t.text)
		}
		return func(map[string]float64) (float64, error) { return v, nil }, nil
	case t.text == "(":
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case t.kind == tokIdent && t.text == "pi":
		return func(map[string]float64) (float64, error) { return math.Pi, nil }, nil
	case t.kind == tokIdent:
		if fn, ok := unaryFuncs[t.text]; ok {
			if _, err := p.expect("("); err != nil {
				return nil, err
			}
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return func(env map[string]float64) (float64, error) {
				v, err := arg(env)
				return fn(v), err
			}, nil
		}
		name, line := t.text, t.line
		return func(env map[string]float64) (float64, error) {
			v, ok := env[name]
			if !ok {
				return 0, &ParseError{Line: line, Msg: fmt.Sprintf("unknown parameter %q", name)}
			}
			return v, nil
		}, nil
	}
	return nil, p.errorf(t, "unexpected %q in expression", t.text)
}

// emitTopLevel resolves register references, broadcasting whole-register
// arguments, and expands the call.
func (p *qasmParser) emitTopLevel(call gateCall) error {
	width := 1
	for _, a := range call.args {
		reg, ok := p.regs[a.reg]
		if !ok {
			return &ParseError{Line: call.line, Msg: fmt.Sprintf("unknown register %q", a.reg)}
		}
		if a.index >= reg.size {
			return &ParseError{Line: call.line, Msg: fmt.Sprintf("index %d out of range for %s[%d]", a.index, a.reg, reg.size)}
		}
		if a.index < 0 {
			if width != 1 && width != reg.size {
				return &ParseError{Line: call.line, Msg: "broadcast registers differ in size"}
			}
			width = reg.size
		}
	}

	params := make([]float64, len(call.params))
	for i, e := range call.params {
		v, err := e(nil)
		if err != nil {
			return err
		}
		params[i] = v
	}

	for k := 0; k < width; k++ {
		qudits := make([]int, len(call.args))
		for i, a := range call.args {
			reg := p.regs[a.reg]
			if a.index < 0 {
				qudits[i] = reg.offset + k
			} else {
				qudits[i] = reg.offset + a.index
			}
		}
		if err := p.expand(call.name, params, qudits, call.line, 0); err != nil {
			return err
		}
	}
	return nil
}

const maxGateNesting = 32

func (p *qasmParser) expand(name string, params []float64, qudits []int, line, depth int) error {
	if depth > maxGateNesting {
		return &ParseError{Line: line, Msg: fmt.Sprintf("gate %s nests too deeply", name)}
	}
	if name == "id" || name == "u0" {
		return nil
	}

	if def, ok := p.defs[name]; ok {
		if len(params) != len(def.params) || len(qudits) != len(def.args) {
			return &ParseError{Line: line, Msg: fmt.Sprintf("gate %s expects %d parameters and %d arguments", name, len(def.params), len(def.args))}
		}
		env := make(map[string]float64, len(params))
		for i, pn := range def.params {
			env[pn] = params[i]
		}
		bind := make(map[string]int, len(qudits))
		for i, an := range def.args {
			bind[an] = qudits[i]
		}
		for _, inner := range def.body {
			vals := make([]float64, len(inner.params))
			for i, e := range inner.params {
				v, err := e(env)
				if err != nil {
					return err
				}
				vals[i] = v
			}
			qs := make([]int, len(inner.args))
			for i, a := range inner.args {
				q, ok := bind[a.reg]
				if !ok || a.index >= 0 {
					return &ParseError{Line: inner.line, Msg: fmt.Sprintf("invalid argument %q in body of %s", a.reg, name)}
				}
				qs[i] = q
			}
			if err := p.expand(inner.name, vals, qs, inner.line, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	gate, ok := LookupGate(name)
	if !ok {
		return &ParseError{Line: line, Msg: fmt.Sprintf("unknown gate %q", name)}
	}
	if len(params) != gate.NumParams {
		return &ParseError{Line: line, Msg: fmt.Sprintf("gate %s takes %d parameters, got %d", name, gate.NumParams, len(params))}
	}
	if len(qudits) != gate.NumQudits {
		return &ParseError{Line: line, Msg: fmt.Sprintf("gate %s acts on %d qudits, got %d", name, gate.NumQudits, len(qudits))}
	}
	seen := make(map[int]bool, len(qudits))
	for _, q := range qudits {
		if seen[q] {
			return &ParseError{Line: line, Msg: fmt.Sprintf("gate %s repeats qudit %d", name, q)}
		}
		seen[q] = true
	}
	op := Operation{Gate: gate, Qudits: qudits}
	if len(params) > 0 {
		op.Params = append([]float64(nil), params...)
	}
	p.ops = append(p.ops, op)
	return nil
}
