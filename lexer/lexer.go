// Package lexer splits template source into text, variable, block, and
// comment tokens.
//
// The delimiters are fixed: {{ }} for variables, {% %} for block tags,
// {# #} for comments. A {% verbatim %} block suppresses tokenization of
// its body, so template syntax inside it passes through as text.
package lexer

import "strings"

// TokenType identifies the kind of a token.
type TokenType int

const (
	// TokenText is literal template text.
	TokenText TokenType = iota
	// TokenVar is the inside of a {{ ... }} expression.
	TokenVar
	// TokenBlock is the inside of a {% ... %} tag.
	TokenBlock
	// TokenComment is the inside of a {# ... #} comment.
	TokenComment
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenVar:
		return "var"
	case TokenBlock:
		return "block"
	case TokenComment:
		return "comment"
	default:
		return "unknown"
	}
}

// Token is one lexed unit of template source. Contents holds the raw text
// for text tokens and the whitespace-trimmed interior for the delimited
// kinds. Line is the 1-based source line the token starts on.
type Token struct {
	Type     TokenType
	Contents string
	Line     int
}

// Tokenize splits source into tokens. It never fails: unterminated
// delimiters lex as literal text, and bad tag contents are the parser's
// concern.
func Tokenize(source string) []Token {
	var tokens []Token
	line := 1
	verbatim := ""
	pos := 0

	emitText := func(s string) {
		if s == "" {
			return
		}
		tokens = append(tokens, Token{Type: TokenText, Contents: s, Line: line})
		line += strings.Count(s, "\n")
	}

	for pos < len(source) {
		start := nextTagStart(source, pos)
		if start < 0 {
			emitText(source[pos:])
			break
		}
		emitText(source[pos:start])

		var typ TokenType
		var closer string
		switch source[start+1] {
		case '{':
			typ, closer = TokenVar, "}}"
		case '%':
			typ, closer = TokenBlock, "%}"
		default:
			typ, closer = TokenComment, "#}"
		}

		rel := strings.Index(source[start+2:], closer)
		if rel < 0 {
			emitText(source[start:])
			break
		}
		end := start + 2 + rel + 2
		raw := source[start:end]
		contents := strings.TrimSpace(source[start+2 : start+2+rel])

		if verbatim != "" {
			// Inside verbatim everything is text except the closing tag.
			if typ == TokenBlock && contents == verbatim {
				verbatim = ""
				tokens = append(tokens, Token{Type: TokenBlock, Contents: contents, Line: line})
			} else {
				tokens = append(tokens, Token{Type: TokenText, Contents: raw, Line: line})
			}
		} else {
			if typ == TokenBlock && (contents == "verbatim" || strings.HasPrefix(contents, "verbatim ")) {
				verbatim = "end" + contents
			}
			tokens = append(tokens, Token{Type: typ, Contents: contents, Line: line})
		}
		line += strings.Count(raw, "\n")
		pos = end
	}
	return tokens
}

// nextTagStart returns the index of the next delimiter opening at or after
// pos, or -1.
func nextTagStart(source string, pos int) int {
	for {
		idx := strings.IndexByte(source[pos:], '{')
		if idx < 0 {
			return -1
		}
		abs := pos + idx
		if abs+1 < len(source) {
			switch source[abs+1] {
			case '{', '%', '#':
				return abs
			}
		}
		pos = abs + 1
		if pos >= len(source) {
			return -1
		}
	}
}
