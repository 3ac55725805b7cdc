package shader_go

import (
	"fmt"
	"strconv"
	"strings"
)

// / ExpressionEvaluator resolves the rewritten condition of an #if / #elif
// / directive. By the time it is called 'defined(X)' has been replaced, macros
// / are expanded and boolean literals and operators have been rewritten to
// / their arithmetic forms ("1", "0", '|', '&', '^', '~').
type ExpressionEvaluator func(expr string) (bool, error)

// / Rewrite boolean literals and logical operators to the arithmetic forms
// / understood by the evaluator.
func RewriteConditionOperators(expr string) string {
	r := strings.NewReplacer("||", "|", "&&", "&", "^^", "^")
	expr = replaceWord(expr, "true", "1")
	expr = replaceWord(expr, "false", "0")
	expr = r.Replace(expr)

	// '!' -> '~', except for '!='.
	var sb strings.Builder
	for i := 0; i < len(expr); i++ {
		if expr[i] == '!' && !(i+1 < len(expr) && expr[i+1] == '=') {
			sb.WriteByte('~')
			continue
		}
		sb.WriteByte(expr[i])
	}
	return sb.String()
}

func replaceWord(s, word, with string) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], word) &&
			(i == 0 || !isIdentChar(s[i-1])) &&
			(i+len(word) == len(s) || !isIdentChar(s[i+len(word)])) {
			sb.WriteString(with)
			i += len(word)
			continue
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// / The default evaluator: integer arithmetic with C precedence. Unary '~'
// / is logical negation because it only ever stands in for a rewritten '!'.
func EvaluateCondition(expr string) (bool, error) {
	p := exprParser{src: expr}
	p.next()
	v, err := p.parseTernary()
	if err != nil {
		return false, err
	}
	if p.tok.kind != exprEOF {
		return false, fmt.Errorf("unexpected '%s'", p.tok.text)
	}
	return v != 0, nil
}

type exprKind int8

const (
	exprEOF exprKind = iota
	exprNumber
	exprIdent
	exprOp
)

type exprToken struct {
	kind exprKind
	text string
	num  int64
}

type exprParser struct {
	src string
	pos int
	tok exprToken
}

var kExprOperators = []string{"<<", ">>", "<=", ">=", "==", "!=", "||", "&&",
	"|", "^", "&", "<", ">", "+", "-", "*", "/", "%", "~", "!", "(", ")", "?", ":"}

func (this *exprParser) next() {
	for this.pos < len(this.src) && isWhitespace(this.src[this.pos]) {
		this.pos++
	}
	if this.pos >= len(this.src) {
		this.tok = exprToken{kind: exprEOF}
		return
	}
	c := this.src[this.pos]
	start := this.pos
	switch {
	case isDigit(c) || (c == '.' && this.pos+1 < len(this.src) && isDigit(this.src[this.pos+1])):
		n := scanNumber([]byte(this.src[this.pos:]))
		text := this.src[start : start+n]
		this.pos += n
		this.tok = exprToken{kind: exprNumber, text: text, num: parseExprNumber(text)}
	case isIdentStart(c):
		for this.pos < len(this.src) && isIdentChar(this.src[this.pos]) {
			this.pos++
		}
		this.tok = exprToken{kind: exprIdent, text: this.src[start:this.pos]}
	default:
		for _, op := range kExprOperators {
			if strings.HasPrefix(this.src[this.pos:], op) {
				this.pos += len(op)
				this.tok = exprToken{kind: exprOp, text: op}
				return
			}
		}
		this.pos++
		this.tok = exprToken{kind: exprOp, text: string(c)}
	}
}

func parseExprNumber(text string) int64 {
	t := strings.TrimRight(text, "uUlL")
	if !strings.HasPrefix(t, "0x") && !strings.HasPrefix(t, "0X") {
		t = strings.TrimRight(t, "fF")
	}
	if v, err := strconv.ParseInt(t, 0, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseUint(t, 0, 64); err == nil {
		return int64(v)
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return int64(f)
	}
	return 0
}

func (this *exprParser) isOp(ops ...string) bool {
	if this.tok.kind != exprOp {
		return false
	}
	for _, op := range ops {
		if this.tok.text == op {
			return true
		}
	}
	return false
}

func (this *exprParser) parseTernary() (int64, error) {
	cond, err := this.parseLogicalOr()
	if err != nil || !this.isOp("?") {
		return cond, err
	}
	this.next()
	a, err := this.parseTernary()
	if err != nil {
		return 0, err
	}
	if !this.isOp(":") {
		return 0, fmt.Errorf("expected ':'")
	}
	this.next()
	b, err := this.parseTernary()
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return a, nil
	}
	return b, nil
}

func (this *exprParser) parseLogicalOr() (int64, error) {
	l, err := this.parseLogicalAnd()
	for err == nil && this.isOp("||") {
		this.next()
		var r int64
		if r, err = this.parseLogicalAnd(); err == nil {
			l = boolToInt(l != 0 || r != 0)
		}
	}
	return l, err
}

func (this *exprParser) parseLogicalAnd() (int64, error) {
	l, err := this.parseBinary(0)
	for err == nil && this.isOp("&&") {
		this.next()
		var r int64
		if r, err = this.parseBinary(0); err == nil {
			l = boolToInt(l != 0 && r != 0)
		}
	}
	return l, err
}

// Binary precedence levels, loosest first.
var kExprLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "%"},
}

func (this *exprParser) parseBinary(level int) (int64, error) {
	if level >= len(kExprLevels) {
		return this.parseUnary()
	}
	l, err := this.parseBinary(level + 1)
	if err != nil {
		return 0, err
	}
	for this.isOp(kExprLevels[level]...) {
		op := this.tok.text
		this.next()
		r, err := this.parseBinary(level + 1)
		if err != nil {
			return 0, err
		}
		if l, err = applyBinary(op, l, r); err != nil {
			return 0, err
		}
	}
	return l, nil
}

func applyBinary(op string, l, r int64) (int64, error) {
	switch op {
	case "|":
		return l | r, nil
	case "^":
		return l ^ r, nil
	case "&":
		return l & r, nil
	case "==":
		return boolToInt(l == r), nil
	case "!=":
		return boolToInt(l != r), nil
	case "<":
		return boolToInt(l < r), nil
	case ">":
		return boolToInt(l > r), nil
	case "<=":
		return boolToInt(l <= r), nil
	case ">=":
		return boolToInt(l >= r), nil
	case "<<":
		return l << uint64(r&63), nil
	case ">>":
		return l >> uint64(r&63), nil
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/", "%":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		if op == "/" {
			return l / r, nil
		}
		return l % r, nil
	}
	return 0, fmt.Errorf("unknown operator '%s'", op)
}

func (this *exprParser) parseUnary() (int64, error) {
	if this.isOp("~", "!") {
		this.next()
		v, err := this.parseUnary()
		return boolToInt(v == 0), err
	}
	if this.isOp("-") {
		this.next()
		v, err := this.parseUnary()
		return -v, err
	}
	if this.isOp("+") {
		this.next()
		return this.parseUnary()
	}
	return this.parsePrimary()
}

func (this *exprParser) parsePrimary() (int64, error) {
	switch this.tok.kind {
	case exprNumber:
		v := this.tok.num
		this.next()
		return v, nil
	case exprIdent:
		return 0, fmt.Errorf("undefined symbol '%s'", this.tok.text)
	case exprEOF:
		return 0, fmt.Errorf("unexpected end of expression")
	}
	if this.isOp("(") {
		this.next()
		v, err := this.parseTernary()
		if err != nil {
			return 0, err
		}
		if !this.isOp(")") {
			return 0, fmt.Errorf("expected ')'")
		}
		this.next()
		return v, nil
	}
	return 0, fmt.Errorf("unexpected '%s'", this.tok.text)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
