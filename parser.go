package tango

import (
	"strings"

	"github.com/oliverhaas/tango/lexer"
)

// Parser turns a token stream into a node tree by dispatching block tags
// through a Library. Tag compile functions drive it recursively: a block
// tag calls Parse with its end-tag names, inspects the stopping token, and
// consumes it.
type Parser struct {
	tokens []lexer.Token
	pos    int
	lib    *Library
	origin string

	namedCycleNodes map[string]*CycleNode
	lastCycleNode   *CycleNode
}

// NewParser creates a parser over a token stream. origin is the template
// name used in error reporting.
func NewParser(tokens []lexer.Token, lib *Library, origin string) *Parser {
	return &Parser{tokens: tokens, lib: lib, origin: origin}
}

// Parse builds nodes until the stream ends or a block tag named in until
// appears. The stopping tag is left in the stream for the caller.
func (p *Parser) Parse(until ...string) (NodeList, error) {
	var nodes NodeList
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++
		switch tok.Type {
		case lexer.TokenText:
			nodes = append(nodes, &TextNode{Text: tok.Contents})
		case lexer.TokenComment:
			// dropped at compile time
		case lexer.TokenVar:
			if tok.Contents == "" {
				return nil, p.errAt(tok, syntaxErrorf("empty variable tag"))
			}
			fe, err := p.CompileFilter(tok.Contents)
			if err != nil {
				return nil, p.errAt(tok, err)
			}
			nodes = append(nodes, &VariableNode{fe: fe})
		case lexer.TokenBlock:
			bits := SplitContents(tok.Contents)
			if len(bits) == 0 {
				return nil, p.errAt(tok, syntaxErrorf("empty block tag"))
			}
			command := bits[0]
			if contains(until, command) {
				p.pos--
				return nodes, nil
			}
			fn, ok := p.lib.tag(command)
			if !ok {
				return nil, p.errAt(tok, NewError(ErrUnknownTag, command))
			}
			node, err := fn(p, tok)
			if err != nil {
				return nil, p.errAt(tok, err)
			}
			nodes = append(nodes, node)
		}
	}
	if len(until) > 0 {
		return nil, p.errAt(lexer.Token{}, syntaxErrorf("unclosed tag, expected %s", strings.Join(until, " or ")))
	}
	return nodes, nil
}

// NextToken consumes and returns the next token.
func (p *Parser) NextToken() lexer.Token {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

// DeleteFirstToken drops the next token. Block tags use it to consume
// their end tag after Parse stops on it.
func (p *Parser) DeleteFirstToken() {
	p.pos++
}

// SkipPast discards tokens up to and including the named end tag.
func (p *Parser) SkipPast(endtag string) error {
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++
		if tok.Type == lexer.TokenBlock {
			if bits := SplitContents(tok.Contents); len(bits) > 0 && bits[0] == endtag {
				return nil
			}
		}
	}
	return syntaxErrorf("unclosed tag, expected %s", endtag)
}

// CompileFilter compiles a filter expression against the library.
func (p *Parser) CompileFilter(text string) (*FilterExpression, error) {
	return NewFilterExpression(text, p.lib)
}

// errAt attaches source position to an error that lacks one.
func (p *Parser) errAt(tok lexer.Token, err error) error {
	te, ok := err.(*Error)
	if !ok {
		te = NewError(ErrSyntax, err.Error())
	}
	if te.Line == 0 {
		te.Line = tok.Line
	}
	if te.Name == "" {
		te.Name = p.origin
	}
	return te
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// SplitContents splits tag contents on whitespace, keeping quoted runs
// (with their quotes) intact so string arguments may contain spaces.
func SplitContents(s string) []string {
	var bits []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				cur.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if cur.Len() > 0 {
				bits = append(bits, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		bits = append(bits, cur.String())
	}
	return bits
}
