package sqlparse

import (
	"strings"
	"unicode"
)

var leadingKeywords = map[string]StatementType{
	"SELECT":   Select,
	"WITH":     Select,
	"INSERT":   Insert,
	"UPDATE":   Update,
	"DELETE":   Delete,
	"CREATE":   Create,
	"DROP":     Drop,
	"ALTER":    Alter,
	"TRUNCATE": Truncate,
	"SET":      Set,
	"SHOW":     Show,
	"DESCRIBE": Describe,
	"DESC":     Describe,
	"EXPLAIN":  Explain,
	"EXISTS":   Exists,
	"CHECK":    Check,
	"USE":      Use,
	"WATCH":    Watch,
	"SYSTEM":   System,
}

// tableAfter lists, per statement type, the keyword sequence preceding the
// target table name.
var tableAfter = map[StatementType][][]string{
	Select:      {{"FROM"}, {"JOIN"}},
	Insert:      {{"INTO"}},
	Update:      {{"UPDATE"}},
	Delete:      {{"FROM"}},
	Create:      {{"TABLE", "IF", "NOT", "EXISTS"}, {"TABLE"}},
	Drop:        {{"TABLE", "IF", "EXISTS"}, {"TABLE"}},
	Alter:       {{"TABLE"}},
	AlterDelete: {{"TABLE"}},
	AlterUpdate: {{"TABLE"}},
	Truncate:    {{"TABLE", "IF", "EXISTS"}, {"TABLE"}, {"TRUNCATE"}},
	Describe:    {{"TABLE"}, {"DESCRIBE"}, {"DESC"}},
	Exists:      {{"TABLE"}, {"EXISTS"}},
	Check:       {{"TABLE"}},
}

var reserved = map[string]struct{}{
	"TABLE":  {},
	"IF":     {},
	"NOT":    {},
	"EXISTS": {},
	"SELECT": {},
	"WITH":   {},
}

func tokenize(sql string) []string {
	return strings.FieldsFunc(sql, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '(' || r == ')'
	})
}

func fromKeywords(sql string) *Statement {
	tokens := tokenize(sql)
	if len(tokens) == 0 {
		return &Statement{Type: Unknown}
	}
	upper := make([]string, len(tokens))
	for i, t := range tokens {
		upper[i] = strings.ToUpper(t)
	}

	typ, ok := leadingKeywords[upper[0]]
	if !ok {
		return &Statement{Type: Unknown}
	}
	if typ == Alter {
		for _, t := range upper[1:] {
			if t == "DELETE" {
				typ = AlterDelete
				break
			}
			if t == "UPDATE" {
				typ = AlterUpdate
				break
			}
		}
	}

	stmt := &Statement{Type: typ}
	seen := map[string]struct{}{}
	for i := range upper {
		for _, seq := range tableAfter[typ] {
			if !hasSeq(upper, i, seq) {
				continue
			}
			j := i + len(seq)
			if j >= len(tokens) {
				continue
			}
			name := normalizeIdent(tokens[j])
			if _, kw := reserved[strings.ToUpper(name)]; kw || name == "" {
				continue
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				stmt.Tables = append(stmt.Tables, name)
			}
			break
		}
	}
	return stmt
}

func hasSeq(tokens []string, at int, seq []string) bool {
	if at+len(seq) > len(tokens) {
		return false
	}
	for k, s := range seq {
		if tokens[at+k] != s {
			return false
		}
	}
	return true
}

// normalizeIdent strips quoting and the schema prefix.
func normalizeIdent(tok string) string {
	if i := strings.LastIndexByte(tok, '.'); i >= 0 {
		tok = tok[i+1:]
	}
	return strings.Trim(tok, "`\"")
}
