package freetext

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedForCMR signals query syntax the CMR keyword parameter cannot express.
var ErrUnsupportedForCMR = errors.New("query not supported by CMR keyword search")

// SplitForCMR rewrites q as a list of CMR keyword queries whose union answers q.
// OR branches become separate queries and exact phrases are sent on their own.
// Parentheses and exclusions are rejected.
func SplitForCMR(q string) ([]string, error) {
	toks, err := tokenize(q)
	if err != nil {
		return nil, err
	}

	var (
		out     []string
		seen    = make(map[string]struct{})
		current []string
	)
	emit := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	flush := func() {
		if len(current) > 0 {
			emit(strings.Join(current, " "))
			current = nil
		}
	}

	for _, t := range toks {
		switch {
		case t.isAnd():
		case t.isOr():
			flush()
		case t.kind == tokLParen || t.kind == tokRParen:
			return nil, fmt.Errorf("%w: parenthesized groups in %q", ErrUnsupportedForCMR, q)
		case t.kind == tokPhrase:
			flush()
			emit(`"` + t.text + `"`)
		case strings.HasPrefix(t.text, "-"):
			return nil, fmt.Errorf("%w: exclusion term %q", ErrUnsupportedForCMR, t.text)
		case strings.HasPrefix(t.text, "+"):
			if term := t.text[1:]; term != "" {
				current = append(current, term)
			}
		default:
			current = append(current, t.text)
		}
	}
	flush()

	return out, nil
}
