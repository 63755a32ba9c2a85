package fields

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Entry maps the spellings of one label to its canonical key.
// DuplicatedSection marks keys whose label appears in both the employer and
// the employee address blocks of a ficha.
type Entry struct {
	Key               string
	Spellings         []string
	DuplicatedSection bool
}

type spelling struct {
	key    string
	text   string
	folded []rune
}

// Dictionary resolves label spellings to canonical keys. It is immutable
// after construction and safe for concurrent use.
type Dictionary struct {
	keys      []string
	byLabel   map[string]string
	dup       map[string]bool
	spellings []spelling
	byKey     map[string][]spelling
	triggers  []string
}

// DefaultTriggers are the labels that open a new record in table mode.
var DefaultTriggers = []string{"Código", "Nome do(a) trabalhador(a)"}

// NewDictionary builds a dictionary from entries. Entries sharing a key are
// merged; a key is duplicated-section when any of its entries says so.
// A spelling may not resolve to two different keys.
func NewDictionary(entries []Entry, triggers []string) (*Dictionary, error) {
	d := &Dictionary{
		byLabel: make(map[string]string),
		dup:     make(map[string]bool),
		byKey:   make(map[string][]spelling),
	}
	for _, e := range entries {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			return nil, fmt.Errorf("dictionary: entry with empty key")
		}
		if _, seen := d.byKey[key]; !seen {
			d.keys = append(d.keys, key)
			d.byKey[key] = nil
		}
		d.dup[key] = d.dup[key] || e.DuplicatedSection
		for _, sp := range e.Spellings {
			folded := Fold(sp)
			if folded == "" {
				return nil, fmt.Errorf("dictionary: empty spelling for key %q", key)
			}
			if prev, ok := d.byLabel[folded]; ok {
				if prev != key {
					return nil, fmt.Errorf("dictionary: spelling %q maps to both %q and %q", sp, prev, key)
				}
				continue
			}
			d.byLabel[folded] = key
			s := spelling{key: key, text: strings.TrimSpace(sp), folded: []rune(folded)}
			d.spellings = append(d.spellings, s)
			d.byKey[key] = append(d.byKey[key], s)
		}
		if len(d.byKey[key]) == 0 {
			return nil, fmt.Errorf("dictionary: key %q has no spellings", key)
		}
	}
	longestFirst := func(list []spelling) {
		sort.SliceStable(list, func(i, j int) bool { return len(list[i].folded) > len(list[j].folded) })
	}
	longestFirst(d.spellings)
	for _, list := range d.byKey {
		longestFirst(list)
	}
	for _, t := range triggers {
		if f := Fold(t); f != "" {
			d.triggers = append(d.triggers, f)
		}
	}
	return d, nil
}

var defaultDictionary = sync.OnceValue(func() *Dictionary {
	d, err := NewDictionary(DefaultEntries(), DefaultTriggers)
	if err != nil {
		panic(err)
	}
	return d
})

// Default returns the built-in dictionary for fichas de registro.
func Default() *Dictionary {
	return defaultDictionary()
}

// Extend returns a new dictionary holding d's entries plus extra.
// Nil or empty triggers keep d's triggers.
func (d *Dictionary) Extend(extra []Entry, triggers []string) (*Dictionary, error) {
	entries := d.Entries()
	entries = append(entries, extra...)
	if len(triggers) == 0 {
		triggers = d.triggers
	}
	return NewDictionary(entries, triggers)
}

// Entries returns one entry per key, in key order.
func (d *Dictionary) Entries() []Entry {
	out := make([]Entry, 0, len(d.keys))
	for _, k := range d.keys {
		e := Entry{Key: k, DuplicatedSection: d.dup[k]}
		for _, s := range d.byKey[k] {
			e.Spellings = append(e.Spellings, s.text)
		}
		out = append(out, e)
	}
	return out
}

// Lookup resolves a label, ignoring case, accents, surrounding whitespace
// and a trailing colon.
func (d *Dictionary) Lookup(label string) (string, bool) {
	label = strings.TrimSuffix(strings.TrimSpace(label), ":")
	key, ok := d.byLabel[Fold(label)]
	return key, ok
}

// IsDuplicated reports whether key belongs to a duplicated section.
func (d *Dictionary) IsDuplicated(key string) bool {
	return d.dup[key]
}

// Keys returns the canonical keys in declaration order.
func (d *Dictionary) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// ContainsTrigger reports whether text contains a record-opening label.
func (d *Dictionary) ContainsTrigger(text string) bool {
	folded := Fold(text)
	for _, t := range d.triggers {
		if strings.Contains(folded, t) {
			return true
		}
	}
	return false
}

// ContainsLabel reports whether any known spelling occurs in text at a word boundary.
func (d *Dictionary) ContainsLabel(text string) bool {
	folded := foldRunes(text)
	for _, s := range d.spellings {
		if start, _ := indexLabel(folded, s.folded); start >= 0 {
			return true
		}
	}
	return false
}

// LeadingLabel returns the spelling that line starts with and its key, if any.
func (d *Dictionary) LeadingLabel(line string) (label, key string, ok bool) {
	folded := foldRunes(strings.TrimSpace(line))
	for _, s := range d.spellings {
		if boundedMatch(folded, 0, s.folded) >= 0 {
			return s.text, s.key, true
		}
	}
	return "", "", false
}

func (d *Dictionary) spellingsFor(key string) []spelling {
	return d.byKey[key]
}

// DefaultEntries returns the built-in label table. The address block keys are
// duplicated-section: the same labels describe the employer first and the
// employee further down the form.
func DefaultEntries() []Entry {
	return []Entry{
		{Key: "codigo", Spellings: []string{"Código"}},
		{Key: "contrato", Spellings: []string{"Contrato"}},
		{Key: "nome", Spellings: []string{"Nome do(a) trabalhador(a)", "Nome do trabalhador", "Nome da trabalhadora", "Nome do empregado"}},
		{Key: "matricula_esocial", Spellings: []string{"Matrícula eSocial", "Matrícula e-Social"}},
		{Key: "nome_pai", Spellings: []string{"Nome do pai"}},
		{Key: "nome_mae", Spellings: []string{"Nome da mãe"}},
		{Key: "data_nascimento", Spellings: []string{"Data de nascimento", "Data nascimento", "Nascimento"}},
		{Key: "raca_cor", Spellings: []string{"Raça/cor", "Raça / cor", "Raça/Cor", "Cor/Raça"}},
		{Key: "sexo", Spellings: []string{"Sexo"}},
		{Key: "naturalidade", Spellings: []string{"Naturalidade"}},
		{Key: "nacionalidade", Spellings: []string{"Nacionalidade"}},
		{Key: "estado_civil", Spellings: []string{"Estado Civil"}},
		{Key: "deficiente", Spellings: []string{"Deficiente", "Possui deficiência"}},
		{Key: "tipo_deficiencia", Spellings: []string{"Tipo de deficiência"}},
		{Key: "tipo_sanguineo", Spellings: []string{"Tipo sanguíneo", "Grupo sanguíneo"}},
		{Key: "cpf", Spellings: []string{"CPF"}},
		{Key: "rg", Spellings: []string{"Cédula de identidade", "Carteira de identidade", "RG"}},
		{Key: "data_emissao_rg", Spellings: []string{"Data de emissão", "Data emissão"}},
		{Key: "orgao_uf_rg", Spellings: []string{"Órgão/UF", "Órgão emissor/UF", "Órgão emissor"}},
		{Key: "ctps", Spellings: []string{"CTPS", "Carteira de trabalho"}},
		{Key: "serie_ctps", Spellings: []string{"Série"}},
		{Key: "digito_ctps", Spellings: []string{"Dígito"}},
		{Key: "titulo_eleitor", Spellings: []string{"Nº título de eleitor", "Nº do título de eleitor", "Título de eleitor"}},
		{Key: "zona_eleitoral", Spellings: []string{"Zona"}},
		{Key: "secao_eleitoral", Spellings: []string{"Seção"}},
		{Key: "pis", Spellings: []string{"Nº do PIS", "Nº PIS", "PIS/PASEP", "PIS"}},
		{Key: "data_cadastramento_pis", Spellings: []string{"Data de cadastramento", "Data cadastramento PIS"}},
		{Key: "grau_instrucao", Spellings: []string{"Grau de instrução", "Escolaridade"}},
		{Key: "habilitacao", Spellings: []string{"Carteira de habilitação", "CNH"}},
		{Key: "categoria_cnh", Spellings: []string{"Categoria CNH", "Categoria da habilitação"}},
		{Key: "validade_cnh", Spellings: []string{"Validade CNH", "Validade da habilitação"}},
		{Key: "endereco", Spellings: []string{"Endereço", "Logradouro"}, DuplicatedSection: true},
		{Key: "numero", Spellings: []string{"Número"}, DuplicatedSection: true},
		{Key: "complemento", Spellings: []string{"Complemento"}, DuplicatedSection: true},
		{Key: "bairro", Spellings: []string{"Bairro"}, DuplicatedSection: true},
		{Key: "cidade", Spellings: []string{"Cidade", "Município"}, DuplicatedSection: true},
		{Key: "estado", Spellings: []string{"Estado", "UF"}, DuplicatedSection: true},
		{Key: "cep", Spellings: []string{"CEP"}, DuplicatedSection: true},
		{Key: "telefone", Spellings: []string{"Telefone", "Fone"}, DuplicatedSection: true},
		{Key: "celular", Spellings: []string{"Celular"}, DuplicatedSection: true},
		{Key: "email", Spellings: []string{"Endereço eletrônico", "E-mail", "Email"}},
		{Key: "data_admissao", Spellings: []string{"Data de admissão", "Admissão"}},
		{Key: "data_registro", Spellings: []string{"Data do registro", "Data de registro"}},
		{Key: "funcao", Spellings: []string{"Função", "Cargo"}},
		{Key: "cbo", Spellings: []string{"CBO"}},
		{Key: "salario_inicial", Spellings: []string{"Salário Inicial", "Salário"}},
		{Key: "forma_pagamento", Spellings: []string{"Forma de pagamento"}},
		{Key: "tipo_pagamento", Spellings: []string{"Tipo de pagamento"}},
		{Key: "insalubridade", Spellings: []string{"Insalubridade"}},
		{Key: "periculosidade", Spellings: []string{"Periculosidade"}},
		{Key: "sindicato", Spellings: []string{"Sindicato"}},
		{Key: "centro_custo", Spellings: []string{"Centro de custo"}},
		{Key: "localizacao", Spellings: []string{"Localização", "Lotação"}},
		{Key: "horario", Spellings: []string{"Horário", "Horário de trabalho"}},
		{Key: "conta_fgts", Spellings: []string{"Nº da conta FGTS", "Conta FGTS"}},
		{Key: "data_opcao_fgts", Spellings: []string{"Data de opção", "Data de opção FGTS"}},
		{Key: "banco_fgts", Spellings: []string{"Banco depositário - FGTS", "Banco depositário"}},
		{Key: "data_rescisao", Spellings: []string{"Data rescisão", "Data da rescisão", "Data de rescisão"}},
		{Key: "aviso_previo", Spellings: []string{"Aviso prévio"}},
		{Key: "saldo_fgts", Spellings: []string{"Saldo FGTS"}},
		{Key: "maior_remuneracao", Spellings: []string{"Maior remuneração"}},
		{Key: "causa_rescisao", Spellings: []string{"Causa da rescisão", "Causa rescisão"}},
		{Key: "empregador", Spellings: []string{"Empregador", "Razão social"}},
		{Key: "cnpj_empregador", Spellings: []string{"CNPJ", "CNPJ/CEI"}},
	}
}
