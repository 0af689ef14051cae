// Package classifier implements the SQL statement classifier: a pure
// function that tags a statement with its kind, DDL/DML/TCL/UTL category,
// and whether it returns rows. Routing decisions in arrowexec and
// connhandler are driven entirely off this output.
package classifier

import "strings"

// Kind is one of the closed set of enum values the classifier recognizes.
type Kind string

const (
	KindAnalyze         Kind = "Analyze"
	KindAlter           Kind = "Alter"
	KindAttach          Kind = "Attach"
	KindDetach          Kind = "Detach"
	KindCall            Kind = "Call"
	KindCheckpoint      Kind = "Checkpoint"
	KindForceCheckpoint Kind = "ForceCheckpoint"
	KindCommentOn       Kind = "CommentOn"
	KindCopy            Kind = "Copy"
	KindCreate          Kind = "Create"
	KindDrop            Kind = "Drop"
	KindDelete          Kind = "Delete"
	KindTruncate        Kind = "Truncate"
	KindDescribe        Kind = "Describe"
	KindShow            Kind = "Show"
	KindExportDatabase  Kind = "ExportDatabase"
	KindImportDatabase  Kind = "ImportDatabase"
	KindInsert          Kind = "Insert"
	KindInstall         Kind = "Install"
	KindLoad            Kind = "Load"
	KindPivot           Kind = "Pivot"
	KindUnpivot         Kind = "Unpivot"
	KindFrom            Kind = "From"
	KindExplain         Kind = "Explain"
	KindSelect          Kind = "Select"
	KindSet             Kind = "Set"
	KindReset           Kind = "Reset"
	KindSummarize       Kind = "Summarize"
	KindBeginTxn        Kind = "BeginTransaction"
	KindCommit          Kind = "Commit"
	KindRollback        Kind = "Rollback"
	KindAbort           Kind = "Abort"
	KindUpdate          Kind = "Update"
	KindWith            Kind = "With"
	KindUse             Kind = "Use"
	KindVacuum          Kind = "Vacuum"
	KindUnknown         Kind = "Unknown"
)

// Category groups a Kind into a broad statement class.
type Category string

const (
	CategoryDDL     Category = "DDL"
	CategoryDML     Category = "DML"
	CategoryTCL     Category = "TCL"
	CategoryUTL     Category = "UTL"
	CategoryUnknown Category = "Unknown"
)

// Classification is the pure result of classifying one statement.
type Classification struct {
	Kind        Kind
	Category    Category
	ReturnsRows bool
}

var returnsRowsKinds = map[Kind]bool{
	KindSelect:    true,
	KindWith:      true,
	KindDescribe:  true,
	KindShow:      true,
	KindPivot:     true,
	KindUnpivot:   true,
	KindFrom:      true,
	KindSummarize: true,
	KindCall:      true,
	KindExplain:   true,
}

var kindCategory = map[Kind]Category{
	KindCreate:          CategoryDDL,
	KindDrop:            CategoryDDL,
	KindAlter:           CategoryDDL,
	KindTruncate:        CategoryDDL,
	KindCommentOn:       CategoryDDL,
	KindAttach:          CategoryDDL,
	KindDetach:          CategoryDDL,

	KindInsert:   CategoryDML,
	KindUpdate:   CategoryDML,
	KindDelete:   CategoryDML,
	KindSelect:   CategoryDML,
	KindWith:     CategoryDML,
	KindFrom:     CategoryDML,
	KindPivot:    CategoryDML,
	KindUnpivot:  CategoryDML,
	KindCopy:     CategoryDML,

	KindBeginTxn: CategoryTCL,
	KindCommit:   CategoryTCL,
	KindRollback: CategoryTCL,
	KindAbort:    CategoryTCL,

	KindSet:             CategoryUTL,
	KindReset:           CategoryUTL,
	KindUse:             CategoryUTL,
	KindShow:            CategoryUTL,
	KindDescribe:        CategoryUTL,
	KindExplain:         CategoryUTL,
	KindSummarize:       CategoryUTL,
	KindAnalyze:         CategoryUTL,
	KindCheckpoint:      CategoryUTL,
	KindForceCheckpoint: CategoryUTL,
	KindExportDatabase:  CategoryUTL,
	KindImportDatabase:  CategoryUTL,
	KindInstall:         CategoryUTL,
	KindLoad:            CategoryUTL,
	KindCall:            CategoryUTL,
	KindVacuum:          CategoryUTL,
}

// multiWordPrefixes is checked before the single-token fallback, longest
// phrases first so "FORCE CHECKPOINT" isn't shadowed by a bare "FORCE" rule
// (there is none, but the same ordering concern applies to "BEGIN
// TRANSACTION" vs "BEGIN").
var multiWordPrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"FORCE CHECKPOINT", KindForceCheckpoint},
	{"COMMENT ON", KindCommentOn},
	{"EXPORT DATABASE", KindExportDatabase},
	{"IMPORT DATABASE", KindImportDatabase},
	{"BEGIN TRANSACTION", KindBeginTxn},
	{"BEGIN", KindBeginTxn},
}

var singleTokenKinds = map[string]Kind{
	"ANALYZE":    KindAnalyze,
	"ALTER":      KindAlter,
	"ATTACH":     KindAttach,
	"DETACH":     KindDetach,
	"CALL":       KindCall,
	"CHECKPOINT": KindCheckpoint,
	"COPY":       KindCopy,
	"CREATE":     KindCreate,
	"DROP":       KindDrop,
	"DELETE":     KindDelete,
	"TRUNCATE":   KindTruncate,
	"DESCRIBE":   KindDescribe,
	"SHOW":       KindShow,
	"INSERT":     KindInsert,
	"INSTALL":    KindInstall,
	"LOAD":       KindLoad,
	"PIVOT":      KindPivot,
	"UNPIVOT":    KindUnpivot,
	"FROM":       KindFrom,
	"EXPLAIN":    KindExplain,
	"SELECT":     KindSelect,
	"SET":        KindSet,
	"RESET":      KindReset,
	"SUMMARIZE":  KindSummarize,
	"COMMIT":     KindCommit,
	"ROLLBACK":   KindRollback,
	"ABORT":      KindAbort,
	"UPDATE":     KindUpdate,
	"WITH":       KindWith,
	"USE":        KindUse,
	"VACUUM":     KindVacuum,
}

// Classify maps sql to its Classification. It is a pure function of the
// input text: Classify(sql) == Classify(sql) for any sql.
func Classify(sql string) Classification {
	folded := strings.ToUpper(strings.TrimSpace(sql))

	for _, mw := range multiWordPrefixes {
		if strings.HasPrefix(folded, mw.prefix) {
			return classification(mw.kind)
		}
	}

	token := firstToken(folded)
	if kind, ok := singleTokenKinds[token]; ok {
		return classification(kind)
	}

	return Classification{Kind: KindUnknown, Category: CategoryUnknown, ReturnsRows: false}
}

func classification(k Kind) Classification {
	cat, ok := kindCategory[k]
	if !ok {
		cat = CategoryUnknown
	}
	return Classification{Kind: k, Category: cat, ReturnsRows: returnsRowsKinds[k]}
}

func firstToken(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	if i < 0 {
		return s
	}
	return s[:i]
}
