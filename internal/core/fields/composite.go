package fields

import (
	"fmt"
	"regexp"
	"strings"
)

// Capture binds a named regexp group to a canonical key.
type Capture struct {
	Group string
	Key   string
}

// Rule is a multi-capture pattern that reads several fields from one
// stretch of text. Positional rules carry address-block keys: in flat text the
// match found latest in the span wins, in table mode they do not run at all.
type Rule struct {
	Name       string
	Pattern    *regexp.Regexp
	Captures   []Capture
	Positional bool
}

// NewRule compiles pattern. Every named group becomes a capture whose key is
// the group name.
func NewRule(name, pattern string, positional bool) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", name, err)
	}
	r := Rule{Name: name, Pattern: re, Positional: positional}
	for _, g := range re.SubexpNames() {
		if g != "" {
			r.Captures = append(r.Captures, Capture{Group: g, Key: g})
		}
	}
	if len(r.Captures) == 0 {
		return Rule{}, fmt.Errorf("rule %s: pattern has no named groups", name)
	}
	return r, nil
}

func mustRule(name, pattern string, positional bool) Rule {
	r, err := NewRule(name, pattern, positional)
	if err != nil {
		panic(err)
	}
	return r
}

type captured struct {
	key   string
	value string
}

// match runs the rule over text. With last set it uses the final match in
// the text instead of the first. start is the byte offset of the match, or -1
// when the rule does not match. Empty captures are dropped.
func (r Rule) match(text string, last bool) (out []captured, start int) {
	var loc []int
	if last {
		all := r.Pattern.FindAllStringSubmatchIndex(text, -1)
		if len(all) == 0 {
			return nil, -1
		}
		loc = all[len(all)-1]
	} else {
		loc = r.Pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			return nil, -1
		}
	}
	for _, c := range r.Captures {
		i := r.Pattern.SubexpIndex(c.Group)
		if i < 0 || loc[2*i] < 0 {
			continue
		}
		v := strings.TrimSpace(text[loc[2*i]:loc[2*i+1]])
		if v != "" {
			out = append(out, captured{key: c.Key, value: v})
		}
	}
	return out, loc[0]
}

// groupPositional splits rules into plain rules and groups of positional
// rules that share at least one key. Rules of a group compete for the same
// fields, so only one of them is applied per span.
func groupPositional(rules []Rule) (plain []Rule, groups [][]Rule) {
	var keys []map[string]bool
	for _, r := range rules {
		if !r.Positional {
			plain = append(plain, r)
			continue
		}
		idx := -1
		for gi, ks := range keys {
			for _, c := range r.Captures {
				if ks[c.Key] {
					idx = gi
					break
				}
			}
			if idx >= 0 {
				break
			}
		}
		if idx < 0 {
			groups = append(groups, nil)
			keys = append(keys, map[string]bool{})
			idx = len(groups) - 1
		}
		groups[idx] = append(groups[idx], r)
		for _, c := range r.Captures {
			keys[idx][c.Key] = true
		}
	}
	return plain, groups
}

// lastOf returns the captures of the match that starts latest in text among
// the group's rules. On equal starts the match with more captures wins.
func lastOf(group []Rule, text string) []captured {
	var best []captured
	bestStart := -1
	for _, r := range group {
		caps, start := r.match(text, true)
		if start < 0 || len(caps) == 0 {
			continue
		}
		if start > bestStart || (start == bestStart && len(caps) > len(best)) {
			best, bestStart = caps, start
		}
	}
	return best
}

const (
	reDate  = `\d{2}/\d{2}/\d{4}`
	reBlank = `[ \t]+`
)

// reCityNoUF never ends in a two-letter word, so a trailing UF is not read
// as part of the city name.
const reCityNoUF = `(?P<cidade>\p{Lu}[\p{Lu}'.\-]*(?:(?:[ \t]+[\p{Lu}'.\-]+)*?[ \t]+(?:[\p{Lu}'.\-]|[\p{Lu}'.\-]{3,}))?)`

var defaultRules = []Rule{
	mustRule("identificacao",
		`(?im)C[óo]digo`+reBlank+`Contrato`+reBlank+`Nome do\(a\) trabalhador\(a\)[^\n]*\n[ \t]*`+
			`(?P<codigo>\d+)`+reBlank+`(?P<contrato>\d+)`+reBlank+`(?P<nome>\S[^\n]*?)[ \t]*$`, false),
	mustRule("nascimento",
		`(?P<data_nascimento>\b`+reDate+`)`+reBlank+
			`(?P<raca_cor>(?i:branc[oa]|pret[oa]|pard[oa]|amarel[oa]|ind[ií]gena|n[aã]o informad[oa]))`+reBlank+
			`(?P<sexo>(?i:masculino|feminino))\b`, false),
	mustRule("documentos",
		`(?P<cpf>\b\d{3}\.\d{3}\.\d{3}-\d{2})`+reBlank+`(?P<rg>[0-9][0-9Xx.\-]{3,14})`+reBlank+
			`(?P<orgao_uf_rg>[A-Za-z]{2,10}[ \t]*/[ \t]*[A-Za-z]{2})`+reBlank+`(?P<data_emissao_rg>`+reDate+`)`, false),
	mustRule("ctps",
		`(?im)CTPS`+reBlank+`S[ée]rie`+reBlank+`D[íi]gito[^\n]*\n[ \t]*`+
			`(?P<ctps>\d+)`+reBlank+`(?P<serie_ctps>\d+)`+reBlank+`(?P<digito_ctps>\d+)`, false),
	mustRule("eleitor",
		`(?im)t[íi]tulo de eleitor`+reBlank+`Zona`+reBlank+`Se[çc][ãa]o[^\n]*\n[ \t]*`+
			`(?P<titulo_eleitor>\d[\d ]*\d)`+reBlank+`(?P<zona_eleitoral>\d{1,4})`+reBlank+`(?P<secao_eleitoral>\d{1,5})\b`, false),
	mustRule("pis",
		`(?im)PIS`+reBlank+`Data de cadastramento[^\n]*\n[ \t]*`+
			`(?P<pis>\d[\d.\-]{7,})`+reBlank+`(?P<data_cadastramento_pis>`+reDate+`)`, false),
	mustRule("admissao",
		`(?im)Data de admiss[ãa]o`+reBlank+`Data do registro[^\n]*\n[ \t]*`+
			`(?P<data_admissao>`+reDate+`)`+reBlank+`(?P<data_registro>`+reDate+`)`, false),
	mustRule("funcao",
		`(?im)Fun[çc][ãa]o`+reBlank+`CBO[^\n]*\n[ \t]*`+
			`(?P<funcao>\S[^\n]*?)`+reBlank+`(?P<cbo>\d{4}-?\d{2})\b`, false),
	mustRule("salario",
		`(?im)Sal[áa]rio Inicial`+reBlank+`Forma de pagamento[^\n]*\n[ \t]*`+
			`(?P<salario_inicial>(?:R\$[ \t]*)?[\d.]+,\d{2})`+reBlank+`(?P<forma_pagamento>\S[^\n]*?)[ \t]*$`, false),
	mustRule("fgts",
		`(?im)conta FGTS`+reBlank+`Data de op[çc][ãa]o[^\n]*\n[ \t]*`+
			`(?P<conta_fgts>\d[\d.\-/]*)`+reBlank+`(?P<data_opcao_fgts>`+reDate+`)`, false),
	mustRule("logradouro",
		`(?im)^[ \t]*Endere[çc]o`+reBlank+`N[úu]mero[^\n]*\n[ \t]*`+
			`(?P<endereco>\S[^\n]*?)`+reBlank+`(?P<numero>\d+[A-Za-z]?|S/?N)\b(?:[ \t]+(?P<complemento>[^\n]*?))?[ \t]*$`, true),
	mustRule("cidade_cep",
		`(?m)^[ \t]*`+reCityNoUF+reBlank+`(?P<cep>\d{5}-?\d{3})`+reBlank+
			`(?P<telefone>\(?\d{2}\)?[ \t]*\d{4,5}-?\d{4})[ \t]*$`, true),
	mustRule("cidade_uf_cep",
		`(?m)^[ \t]*(?P<cidade>\p{Lu}[\p{Lu}' .\-]*?)`+reBlank+`(?P<estado>[A-Z]{2})`+reBlank+`(?P<cep>\d{5}-?\d{3})`+reBlank+
			`(?P<telefone>\(?\d{2}\)?[ \t]*\d{4,5}-?\d{4})[ \t]*$`, true),
}

// DefaultRules returns the built-in composite rules in evaluation order.
// Positional rules sharing keys compete: the match found latest in the span
// is applied.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

var (
	strictMarker = regexp.MustCompile(`(?i)C[óo]digo\s+Contrato\s+Nome\b`)
	looseMarker  = regexp.MustCompile(`(?i)C[óo]digo\s*:?\s*\d+`)
)

// FindMarkers returns the byte ranges of record-opening markers in text.
// The strict "Código Contrato Nome" header is preferred; the loose
// "Código <digits>" form is used only when no strict marker exists.
func FindMarkers(text string) [][]int {
	if locs := strictMarker.FindAllStringIndex(text, -1); len(locs) > 0 {
		return locs
	}
	return looseMarker.FindAllStringIndex(text, -1)
}
