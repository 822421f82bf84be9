package finding

import (
	"fmt"
	"strings"
)

// Category is a vulnerability family in the signature catalog.
type Category string

const (
	SQLInjection       Category = "sql_injection"
	XSS                Category = "xss"
	CommandInjection   Category = "command_injection"
	PathTraversal      Category = "path_traversal"
	SensitiveData      Category = "sensitive_data"
	MissingHeader      Category = "missing_header"
	BackupFileExposure Category = "backup_file_exposure"
	SensitiveEndpoint  Category = "sensitive_endpoint"
)

// Categories lists the taxonomy in catalog order.
var Categories = []Category{
	SQLInjection,
	XSS,
	CommandInjection,
	PathTraversal,
	SensitiveData,
	MissingHeader,
	BackupFileExposure,
	SensitiveEndpoint,
}

var categoryNames = map[Category]string{
	SQLInjection:       "SQL Injection",
	XSS:                "Cross-Site Scripting",
	CommandInjection:   "Command Injection",
	PathTraversal:      "Path Traversal",
	SensitiveData:      "Sensitive Data Exposure",
	MissingHeader:      "Missing Security Header",
	BackupFileExposure: "Backup File Exposure",
	SensitiveEndpoint:  "Sensitive Endpoint",
}

// IsValid reports whether c is part of the taxonomy.
func (c Category) IsValid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DisplayName returns the human-readable category name.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// String returns the category as a string.
func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts either the wire name ("sql_injection") or the
// compact spelling ("SQLInjection", "sqlinjection").
func ParseCategory(name string) (Category, error) {
	want := compactName(name)
	for _, c := range Categories {
		if compactName(string(c)) == want {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

func compactName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
