// Package freetext implements the q parameter of OGC API Features Part 9
// (text search) as used by the STAC collection-search free-text extension.
//
// Whitespace and AND join terms conjunctively, commas and OR join them
// disjunctively, "double quotes" mark an exact phrase, +term is required,
// -term is excluded and parentheses group. Terms match whole words,
// case-insensitively.
package freetext

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/stacfed/internal/domain"
)

// Query is a parsed free-text expression.
type Query struct {
	raw  string
	root node
}

// String returns the original query text.
func (q Query) String() string { return q.raw }

// Match reports whether the expression holds over the given text fields.
// A term or phrase matches when any single field contains it.
func (q Query) Match(fields ...string) bool {
	docs := make([][]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			docs = append(docs, words(f))
		}
	}
	return q.root.eval(docs)
}

// Parse parses q. Empty queries and unbalanced syntax are rejected.
func Parse(q string) (Query, error) {
	toks, err := tokenize(q)
	if err != nil {
		return Query{}, err
	}
	if len(toks) == 0 {
		return Query{}, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return Query{}, err
	}
	if p.pos < len(p.toks) {
		return Query{}, fmt.Errorf("%w: unexpected %q", domain.ErrInvalidQuery, p.toks[p.pos].text)
	}
	return Query{raw: q, root: root}, nil
}

type node interface {
	eval(docs [][]string) bool
}

type termNode struct{ words []string }

func (n termNode) eval(docs [][]string) bool {
	for _, d := range docs {
		if containsSeq(d, n.words) {
			return true
		}
	}
	return false
}

type notNode struct{ child node }

func (n notNode) eval(docs [][]string) bool { return !n.child.eval(docs) }

type andNode struct{ children []node }

func (n andNode) eval(docs [][]string) bool {
	for _, c := range n.children {
		if !c.eval(docs) {
			return false
		}
	}
	return true
}

type orNode struct{ children []node }

func (n orNode) eval(docs [][]string) bool {
	for _, c := range n.children {
		if c.eval(docs) {
			return true
		}
	}
	return false
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokComma
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func (t token) isOr() bool  { return t.kind == tokComma || (t.kind == tokWord && t.text == "OR") }
func (t token) isAnd() bool { return t.kind == tokWord && t.text == "AND" }

func tokenize(q string) ([]token, error) {
	var (
		toks []token
		rs   = []rune(q)
	)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == '"':
			end := i + 1
			for end < len(rs) && rs[end] != '"' {
				end++
			}
			if end == len(rs) {
				return nil, fmt.Errorf("%w: unterminated phrase", domain.ErrInvalidQuery)
			}
			toks = append(toks, token{kind: tokPhrase, text: string(rs[i+1 : end])})
			i = end + 1
		default:
			end := i
			for end < len(rs) && !unicode.IsSpace(rs[end]) && !strings.ContainsRune(`,()"`, rs[end]) {
				end++
			}
			toks = append(toks, token{kind: tokWord, text: string(rs[i:end])})
			i = end
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) parseOr() (node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []node{first}
	for {
		t, ok := p.peek()
		if !ok || !t.isOr() {
			break
		}
		p.pos++
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return orNode{children: children}, nil
}

func (p *parser) parseAnd() (node, error) {
	var children []node
	for {
		t, ok := p.peek()
		if !ok || t.isOr() || t.kind == tokRParen {
			break
		}
		if t.isAnd() {
			if len(children) == 0 {
				return nil, fmt.Errorf("%w: AND without left operand", domain.ErrInvalidQuery)
			}
			p.pos++
			continue
		}
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	switch len(children) {
	case 0:
		return nil, fmt.Errorf("%w: missing term", domain.ErrInvalidQuery)
	case 1:
		return children[0], nil
	}
	return andNode{children: children}, nil
}

func (p *parser) parseUnary() (node, error) {
	t, _ := p.peek()
	p.pos++

	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing, ok := p.peek(); !ok || closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: missing closing parenthesis", domain.ErrInvalidQuery)
		}
		p.pos++
		return inner, nil
	case tokPhrase:
		return newTerm(t.text)
	case tokWord:
		switch {
		case strings.HasPrefix(t.text, "+"):
			return newTerm(t.text[1:])
		case strings.HasPrefix(t.text, "-"):
			n, err := newTerm(t.text[1:])
			if err != nil {
				return nil, err
			}
			return notNode{child: n}, nil
		}
		return newTerm(t.text)
	}
	return nil, fmt.Errorf("%w: unexpected %q", domain.ErrInvalidQuery, t.text)
}

func newTerm(text string) (node, error) {
	w := words(text)
	if len(w) == 0 {
		return nil, fmt.Errorf("%w: empty term", domain.ErrInvalidQuery)
	}
	return termNode{words: w}, nil
}

// words lowercases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsSeq(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
