package sqlparse

//go:generate mockgen -source=statement.go -destination=../mock/sqlparse/statement_mock.go -package=mock_sqlparse

type LanguageType int

const (
	LanguageUnknown LanguageType = iota
	DDL
	DML
	DCL
)

func (l LanguageType) String() string {
	switch l {
	case DDL:
		return "DDL"
	case DML:
		return "DML"
	case DCL:
		return "DCL"
	default:
		return "UNKNOWN"
	}
}

type OperationType int

const (
	OperationUnknown OperationType = iota
	Read
	Write
)

func (o OperationType) String() string {
	switch o {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

type StatementType int

const (
	Unknown StatementType = iota
	Alter
	AlterDelete
	AlterUpdate
	Check
	Create
	Delete
	Describe
	Drop
	Exists
	Explain
	Insert
	Select
	Set
	Show
	System
	Truncate
	Update
	Use
	Watch
)

type statementInfo struct {
	name       string
	lang       LanguageType
	op         OperationType
	idempotent bool
}

// statementTypes is indexed by StatementType. Idempotent statements are safe to
// resend verbatim after a failure.
var statementTypes = [...]statementInfo{
	Unknown:     {"UNKNOWN", LanguageUnknown, OperationUnknown, false},
	Alter:       {"ALTER", DDL, OperationUnknown, false},
	AlterDelete: {"ALTER_DELETE", DDL, Write, false},
	AlterUpdate: {"ALTER_UPDATE", DDL, Write, false},
	Check:       {"CHECK", DDL, OperationUnknown, true},
	Create:      {"CREATE", DDL, OperationUnknown, false},
	Delete:      {"DELETE", DML, Write, false},
	Describe:    {"DESCRIBE", DDL, Read, true},
	Drop:        {"DROP", DDL, OperationUnknown, false},
	Exists:      {"EXISTS", DML, Read, true},
	Explain:     {"EXPLAIN", DDL, Read, true},
	Insert:      {"INSERT", DML, Write, false},
	Select:      {"SELECT", DML, Read, true},
	Set:         {"SET", DCL, OperationUnknown, true},
	Show:        {"SHOW", DDL, Read, true},
	System:      {"SYSTEM", DDL, OperationUnknown, false},
	Truncate:    {"TRUNCATE", DDL, OperationUnknown, true},
	Update:      {"UPDATE", DML, Write, false},
	Use:         {"USE", DDL, OperationUnknown, true},
	Watch:       {"WATCH", DDL, OperationUnknown, true},
}

func (s StatementType) info() statementInfo {
	if s < 0 || int(s) >= len(statementTypes) {
		return statementTypes[Unknown]
	}
	return statementTypes[s]
}

func (s StatementType) String() string {
	return s.info().name
}

func (s StatementType) LanguageType() LanguageType {
	return s.info().lang
}

func (s StatementType) OperationType() OperationType {
	return s.info().op
}

func (s StatementType) Idempotent() bool {
	return s.info().idempotent
}

// Statement is what the data plane needs to know about a SQL text to route it.
type Statement struct {
	Sql    string
	Type   StatementType
	Tables []string
}

// Parser is the SQL front-end boundary.
type Parser interface {
	Parse(sql string) (*Statement, error)
}
