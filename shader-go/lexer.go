package shader_go

type TokenClass int8

const (
	TOKEN_UNKNOWN TokenClass = iota
	TOKEN_KEYWORD
	TOKEN_VALUE
	TOKEN_IDENTIFIER
	TOKEN_COMMENT
	TOKEN_WHITESPACE
)

var kTokenClassNames = [...]string{
	"unknown",
	"keyword",
	"value",
	"identifier",
	"comment",
	"whitespace",
}

// / Return a human-readable form of a token class, used in error messages.
func (this TokenClass) String() string {
	if int(this) < 0 || int(this) >= len(kTokenClassNames) {
		return "unknown"
	}
	return kTokenClassNames[this]
}

// / Tokenizer is the capability the preprocessor uses to walk script text.
// / ParseToken classifies the token at the very start of src and returns its
// / length in bytes. A zero length is never returned for non-empty input.
type Tokenizer interface {
	ParseToken(src []byte) (TokenClass, int)
}

// / The default tokenizer. Classifies text the way the script language
// / does: reserved words and punctuation are keywords, numbers and quoted
// / strings are values, and anything it cannot place ('#', '$', '\\') is
// / unknown.
type ScriptTokenizer struct {
	keywords_ map[string]bool
}

var kScriptKeywords = []string{
	"and", "abstract", "auto", "bool", "break", "case", "cast", "class", "const",
	"continue", "default", "do", "double", "else", "enum", "explicit", "external",
	"false", "final", "float", "for", "from", "funcdef", "function", "get", "if",
	"import", "in", "inout", "int", "int8", "int16", "int32", "int64", "interface",
	"is", "mixin", "namespace", "not", "null", "or", "out", "override", "private",
	"property", "protected", "return", "set", "shared", "super", "switch", "this",
	"true", "typedef", "uint", "uint8", "uint16", "uint32", "uint64", "void",
	"while", "xor",
}

// Longest operators first so the scan is greedy.
var kScriptOperators = []string{
	">>>=",
	"**=", "<<=", ">>=", ">>>", "!is",
	"**", "<=", ">=", "==", "!=", "+=", "-=", "*=", "/=", "%=", "++", "--",
	"||", "&&", "^^", "|=", "&=", "^=", "<<", ">>", "::",
	"*", "/", "%", "+", "-", "<", ">", "(", ")", "?", ":", "=", "&", ",",
	"{", "}", ";", "[", "]", ".", "|", "^", "~", "!", "@",
}

func NewScriptTokenizer() *ScriptTokenizer {
	ret := ScriptTokenizer{}
	ret.keywords_ = make(map[string]bool, len(kScriptKeywords))
	for _, kw := range kScriptKeywords {
		ret.keywords_[kw] = true
	}
	return &ret
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\v' || c == '\f'
}

func (this *ScriptTokenizer) ParseToken(src []byte) (TokenClass, int) {
	if len(src) == 0 {
		return TOKEN_UNKNOWN, 0
	}
	c := src[0]

	if isWhitespace(c) {
		n := 1
		for n < len(src) && isWhitespace(src[n]) {
			n++
		}
		return TOKEN_WHITESPACE, n
	}

	if c == '/' && len(src) > 1 {
		if src[1] == '/' {
			n := 2
			for n < len(src) && src[n] != '\n' {
				n++
			}
			return TOKEN_COMMENT, n
		}
		if src[1] == '*' {
			n := 2
			for n < len(src) {
				if src[n] == '*' && n+1 < len(src) && src[n+1] == '/' {
					return TOKEN_COMMENT, n + 2
				}
				n++
			}
			return TOKEN_COMMENT, n
		}
	}

	if isDigit(c) || (c == '.' && len(src) > 1 && isDigit(src[1])) {
		return TOKEN_VALUE, scanNumber(src)
	}

	if c == '"' || c == '\'' {
		return TOKEN_VALUE, scanString(src)
	}

	if isIdentStart(c) {
		n := 1
		for n < len(src) && isIdentChar(src[n]) {
			n++
		}
		if this.keywords_[string(src[:n])] {
			return TOKEN_KEYWORD, n
		}
		return TOKEN_IDENTIFIER, n
	}

	for _, op := range kScriptOperators {
		if len(src) >= len(op) && string(src[:len(op)]) == op {
			// "!is" only when followed by a non identifier character.
			if op == "!is" && len(src) > 3 && isIdentChar(src[3]) {
				continue
			}
			return TOKEN_KEYWORD, len(op)
		}
	}

	return TOKEN_UNKNOWN, 1
}

func scanNumber(src []byte) int {
	n := 0
	if len(src) > 1 && src[0] == '0' && (src[1] == 'x' || src[1] == 'X' || src[1] == 'b' || src[1] == 'B') {
		n = 2
		for n < len(src) && isIdentChar(src[n]) {
			n++
		}
		return n
	}
	for n < len(src) && isDigit(src[n]) {
		n++
	}
	if n < len(src) && src[n] == '.' {
		n++
		for n < len(src) && isDigit(src[n]) {
			n++
		}
	}
	if n < len(src) && (src[n] == 'e' || src[n] == 'E') {
		m := n + 1
		if m < len(src) && (src[m] == '+' || src[m] == '-') {
			m++
		}
		if m < len(src) && isDigit(src[m]) {
			n = m
			for n < len(src) && isDigit(src[n]) {
				n++
			}
		}
	}
	if n < len(src) && (src[n] == 'f' || src[n] == 'F') {
		n++
	}
	return n
}

func scanString(src []byte) int {
	quote := src[0]
	// heredoc """..."""
	if quote == '"' && len(src) >= 3 && src[1] == '"' && src[2] == '"' {
		for n := 3; n+2 < len(src); n++ {
			if src[n] == '"' && src[n+1] == '"' && src[n+2] == '"' {
				return n + 3
			}
		}
		return len(src)
	}
	n := 1
	for n < len(src) {
		switch src[n] {
		case '\\':
			n += 2
			continue
		case '\n':
			// Unterminated literal stops at the end of the line.
			return n
		case quote:
			return n + 1
		}
		n++
	}
	if n > len(src) {
		n = len(src)
	}
	return n
}
