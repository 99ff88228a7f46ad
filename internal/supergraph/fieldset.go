package supergraph

import "fmt"

// parseFieldSet parses a GraphQL-selection-set-shaped field-set string, as
// used by @key/@requires/@provides, e.g. `id` or `id shippingInfo { zip }`.
func parseFieldSet(src string) (*FieldSet, error) {
	toks := tokenizeFieldSet(src)
	p := &fieldSetParser{toks: toks}
	fs, err := p.parseSet()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected trailing token %q in field set %q", p.toks[p.pos], src)
	}
	return fs, nil
}

func tokenizeFieldSet(src string) []string {
	var toks []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			toks = append(toks, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range src {
		switch {
		case r == '{' || r == '}':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ',':
			flush()
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return toks
}

type fieldSetParser struct {
	toks []string
	pos  int
}

func (p *fieldSetParser) parseSet() (*FieldSet, error) {
	fs := &FieldSet{}
	for p.pos < len(p.toks) && p.toks[p.pos] != "}" {
		name := p.toks[p.pos]
		p.pos++
		sel := FieldSetSelection{Name: name}
		if p.pos < len(p.toks) && p.toks[p.pos] == "{" {
			p.pos++
			sub, err := p.parseSet()
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.toks) || p.toks[p.pos] != "}" {
				return nil, fmt.Errorf("unterminated subselection on field %q", name)
			}
			p.pos++
			sel.Sub = sub
		}
		fs.Selections = append(fs.Selections, sel)
	}
	return fs, nil
}
