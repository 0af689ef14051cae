// Package secretinjector renders the `CREATE TEMPORARY SECRET` DDL, one
// statement per stored secret. Rendering is pure: given an id, kind,
// field map and scope, it always produces the same SQL text.
package secretinjector

import (
	"fmt"
	"strings"

	"github.com/pondpilot/pondpilot-sub000/secretstore"
)

// SecretName derives the DuckDB secret name from a stored secret id:
// "secret_<id_with_hyphens_replaced_by_underscores>".
func SecretName(id string) string {
	return "secret_" + strings.ReplaceAll(id, "-", "_")
}

// paramOrder fixes the order CREATE SECRET parameters are rendered in, for
// deterministic output (useful for golden tests and caching).
var paramOrder = map[secretstore.Kind][]string{
	secretstore.KindMotherDuck:  {"token"},
	secretstore.KindHuggingFace: {"token"},
	secretstore.KindDuckLake:    {"token"},
	secretstore.KindS3:          {"key_id", "secret", "region", "endpoint", "url_style"},
	secretstore.KindGCS:         {"key_id", "secret", "endpoint"},
	secretstore.KindR2:          {"account_id", "key_id", "secret"},
	secretstore.KindAzure:       {"account_name", "secret"},
	secretstore.KindPostgres:    {"username", "password", "host", "port", "database"},
	secretstore.KindMySQL:       {"username", "password", "host", "port", "database"},
	secretstore.KindHTTP:        {"bearer_token", "basic_username", "basic_password"},
}

// duckdbSecretType maps a stored secret Kind to the TYPE token DuckDB's
// CREATE SECRET DDL expects.
var duckdbSecretType = map[secretstore.Kind]string{
	secretstore.KindMotherDuck:  "MOTHERDUCK",
	secretstore.KindHuggingFace: "HUGGINGFACE",
	secretstore.KindDuckLake:    "DUCKLAKE",
	secretstore.KindS3:          "S3",
	secretstore.KindGCS:         "GCS",
	secretstore.KindR2:          "R2",
	secretstore.KindAzure:       "AZURE",
	secretstore.KindPostgres:    "POSTGRES",
	secretstore.KindMySQL:       "MYSQL",
	secretstore.KindHTTP:        "HTTP",
}

// paramKeyword renames a stored field name to the DDL keyword DuckDB
// expects, where it differs.
var paramKeyword = map[string]string{
	"key_id":         "KEY_ID",
	"secret":         "SECRET",
	"region":         "REGION",
	"endpoint":       "ENDPOINT",
	"url_style":      "URL_STYLE",
	"account_id":     "ACCOUNT_ID",
	"account_name":   "ACCOUNT_NAME",
	"token":          "TOKEN",
	"username":       "USERNAME",
	"password":       "PASSWORD",
	"host":           "HOST",
	"port":           "PORT",
	"database":       "DATABASE",
	"bearer_token":   "BEARER_TOKEN",
	"basic_username": "BASIC_USERNAME",
	"basic_password": "BASIC_PASSWORD",
}

// Render builds `CREATE TEMPORARY SECRET IF NOT EXISTS <name> (TYPE <kind>, <k> <v> …)`
// for one secret. Every value is single-quote escaped; backslashes are
// doubled; NULs are stripped.4.
func Render(id string, kind secretstore.Kind, fields map[string]string, scope string) (string, error) {
	ddlType, ok := duckdbSecretType[kind]
	if !ok {
		return "", fmt.Errorf("secretinjector: no DDL mapping for kind %q", kind)
	}

	name := SecretName(id)

	var params []string
	params = append(params, "TYPE "+ddlType)

	order, ok := paramOrder[kind]
	if !ok {
		order = sortedKeys(fields)
	}
	for _, key := range order {
		val, present := fields[key]
		if !present || val == "" {
			continue
		}
		keyword, ok := paramKeyword[key]
		if !ok {
			keyword = strings.ToUpper(key)
		}
		params = append(params, fmt.Sprintf("%s %s", keyword, escapeValue(val)))
	}

	if scope != "" {
		params = append(params, fmt.Sprintf("SCOPE %s", escapeValue(scope)))
	}

	return fmt.Sprintf("CREATE TEMPORARY SECRET IF NOT EXISTS %s (%s)", name, strings.Join(params, ", ")), nil
}

func escapeValue(v string) string {
	v = strings.ReplaceAll(v, "\x00", "")
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "'", "''")
	return "'" + v + "'"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort: field maps are small (<= 5 entries)
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
