package catalog

import (
	"sync"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/traffic"
)

var (
	request  = traffic.FieldRequest
	response = traffic.FieldResponse
	url      = traffic.FieldURL
)

// Builtin returns a fresh copy of the built-in rule set in catalog order.
func Builtin() []Rule {
	var rules []Rule
	rules = append(rules, sqlInjectionRules...)
	rules = append(rules, xssRules...)
	rules = append(rules, commandInjectionRules...)
	rules = append(rules, pathTraversalRules...)
	rules = append(rules, sensitiveDataRules...)
	rules = append(rules, missingHeaderRules...)
	rules = append(rules, backupFileRules...)
	rules = append(rules, sensitiveEndpointRules...)
	return rules
}

// Default returns the catalog built from Builtin. It is built once per
// process.
var Default = sync.OnceValue(func() *Catalog {
	b := NewBuilder()
	if err := b.Register(Builtin()...); err != nil {
		panic(err)
	}
	return b.Build()
})

var sqlInjectionRules = []Rule{
	{
		ID: "sqli-tautology", Category: finding.SQLInjection, Subkind: "tautology",
		Name:       "SQL Injection (boolean tautology)",
		Expression: `'\s*(?:or|and)\s+'?\w+'?\s*(?:=|like)\s*'?\w+`,
		Confidence: finding.ConfidenceHigh, Severity: finding.Critical, CWE: "CWE-89",
		Remediation: "Use parameterized queries; never concatenate input into SQL.",
	},
	{
		ID: "sqli-union", Category: finding.SQLInjection, Subkind: "union",
		Name:       "SQL Injection (UNION query)",
		Expression: `\bunion(?:\s+all)?\s+select\b[^;]{0,80}`,
		Confidence: finding.ConfidenceHigh, Severity: finding.Critical, CWE: "CWE-89",
		Remediation: "Use parameterized queries; never concatenate input into SQL.",
	},
	{
		ID: "sqli-time-based", Category: finding.SQLInjection, Subkind: "time_based",
		Name:       "SQL Injection (time-based)",
		Expression: `\b(?:sleep\s*\(\s*\d+\s*\)|benchmark\s*\(\s*\d+\s*,|waitfor\s+delay\s+'[\d:]+'|pg_sleep\s*\(\s*\d+\s*\))`,
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-89",
	},
	{
		ID: "sqli-stacked", Category: finding.SQLInjection, Subkind: "stacked_query",
		Name:       "SQL Injection (stacked query)",
		Expression: `'\s*;\s*(?:drop|delete|insert|update|truncate|exec(?:ute)?|shutdown)\b\s*\w*`,
		Confidence: finding.ConfidenceMedium, Severity: finding.Critical, CWE: "CWE-89",
	},
	{
		ID: "sqli-numeric-tautology", Category: finding.SQLInjection, Subkind: "tautology",
		Name:       "SQL Injection (numeric tautology)",
		Expression: `\b(?:or|and)\s+(?:1\s*=\s*1|0\s*=\s*0|true)\b\s*(?:--|#|/\*)?`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-89",
	},
	{
		ID: "sqli-comment-terminator", Category: finding.SQLInjection, Subkind: "comment",
		Name:       "SQL Injection (quote and comment)",
		Expression: `\w'\s*(?:--\s|#|/\*)`,
		Confidence: finding.ConfidenceLow, Severity: finding.Medium, CWE: "CWE-89",
	},
	{
		ID: "sqli-error-mysql", Category: finding.SQLInjection, Subkind: "error_disclosure",
		Name:       "SQL Error Disclosure (MySQL)",
		Expression: `you have an error in your sql syntax|warning:\s*mysqli?_\w+\(|check the manual that corresponds to your (?:mysql|mariadb) server version|com\.mysql\.jdbc\.exceptions`,
		Fields:     []traffic.FieldKind{response},
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-209",
	},
	{
		ID: "sqli-error-postgres", Category: finding.SQLInjection, Subkind: "error_disclosure",
		Name:       "SQL Error Disclosure (PostgreSQL)",
		Expression: `pg_query\(\)|org\.postgresql\.util\.psqlexception|unterminated quoted string at or near|syntax error at or near "[^"]{1,40}"`,
		Fields:     []traffic.FieldKind{response},
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-209",
	},
	{
		ID: "sqli-error-mssql", Category: finding.SQLInjection, Subkind: "error_disclosure",
		Name:       "SQL Error Disclosure (MSSQL)",
		Expression: `unclosed quotation mark after the character string|microsoft ole db provider for (?:odbc drivers|sql server)|\[microsoft\]\[odbc sql server driver\]|system\.data\.sqlclient\.sqlexception`,
		Fields:     []traffic.FieldKind{response},
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-209",
	},
	{
		ID: "sqli-error-oracle", Category: finding.SQLInjection, Subkind: "error_disclosure",
		Name:       "SQL Error Disclosure (Oracle)",
		Expression:    `\bORA-\d{5}\b|quoted string not properly terminated|oracle\.jdbc\.driver`,
		CaseSensitive: true,
		Fields:        []traffic.FieldKind{response},
		Confidence:    finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-209",
	},
	{
		ID: "sqli-error-sqlite", Category: finding.SQLInjection, Subkind: "error_disclosure",
		Name:       "SQL Error Disclosure (SQLite)",
		Expression: `sqlite3?\.operationalerror|sqlite_error|sqliteexception|near "[^"]{1,40}": syntax error`,
		Fields:     []traffic.FieldKind{response},
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-209",
	},
}

var xssRules = []Rule{
	{
		ID: "xss-script-payload", Category: finding.XSS, Subkind: "script_tag",
		Name:       "XSS (script payload)",
		Expression: `<script\b[^>]*>\s*(?:alert|prompt|confirm|eval|document\.cookie|document\.location|window\.location|fetch)\b[^<]{0,80}`,
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-79",
		Remediation: "Encode output for its context and apply a Content-Security-Policy.",
	},
	{
		ID: "xss-event-handler", Category: finding.XSS, Subkind: "event_handler",
		Name:       "XSS (event handler)",
		Expression: `<[a-z]+\b[^>]*\son(?:error|load|mouseover|focus|click|toggle|animationstart|pointerenter)\s*=\s*['"]?[^'">]{0,60}?(?:alert|prompt|confirm|eval|fetch|document\.)`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-79",
	},
	{
		ID: "xss-javascript-uri", Category: finding.XSS, Subkind: "javascript_uri",
		Name:       "XSS (javascript: URI)",
		Expression: `\b(?:href|src|action|formaction|data)\s*=\s*['"]?\s*javascript:[^'"\s>]{1,80}`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-79",
	},
	{
		ID: "xss-dom-sink", Category: finding.XSS, Subkind: "dom_sink",
		Name:       "XSS (DOM sink)",
		Expression: `\bdocument\.write\s*\(\s*[^)]{0,60}(?:location|document\.url|document\.referrer|window\.name)|\.innerHTML\s*=\s*[^;]{0,60}(?:location\.(?:hash|search)|document\.referrer)`,
		Fields:     []traffic.FieldKind{response},
		Confidence: finding.ConfidenceMedium, Severity: finding.Medium, CWE: "CWE-79",
	},
	{
		ID: "xss-encoded-payload", Category: finding.XSS, Subkind: "encoded_payload",
		Name:       "XSS (encoded payload)",
		Expression: `(?:%3cscript|%253cscript|\\x3cscript|\\u003cscript|&#x?0*(?:60|3c);script)[^\s]{0,60}`,
		Fields:     []traffic.FieldKind{url, request},
		Confidence: finding.ConfidenceLow, Severity: finding.Medium, CWE: "CWE-79",
	},
}

var commandInjectionRules = []Rule{
	{
		ID: "cmdi-output", Category: finding.CommandInjection, Subkind: "command_output",
		Name:       "Command Injection (command output)",
		Expression: `uid=\d+\(\w+\)\s+gid=\d+\(\w+\)(?:\s+groups=[\w(),]+)?`,
		Fields:     []traffic.FieldKind{response},
		Confidence: finding.ConfidenceCertain, Severity: finding.Critical, CWE: "CWE-78",
		Remediation: "Avoid shell invocation; pass arguments as a vector and allow-list input.",
	},
	{
		ID: "cmdi-chained", Category: finding.CommandInjection, Subkind: "chained_command",
		Name:       "Command Injection (chained command)",
		Expression: `(?:;|\|\||&&|\|)\s*(?:cat\s+/etc/(?:passwd|shadow|hosts)|id|whoami|uname\s+-a|wget\s+https?://|curl\s+https?://|nc\s+-[elv]+|bash\s+-[ci]|ping\s+-[cn]\s*\d+|nslookup\s+\S+)\b`,
		Fields:     []traffic.FieldKind{url, request},
		Confidence: finding.ConfidenceMedium, Severity: finding.Critical, CWE: "CWE-78",
	},
	{
		ID: "cmdi-substitution", Category: finding.CommandInjection, Subkind: "substitution",
		Name:       "Command Injection (command substitution)",
		Expression: `\$\(\s*(?:id|whoami|uname|cat\s+/etc/passwd|curl|wget|sleep\s+\d+)[^)]{0,40}\)|\x60\s*(?:id|whoami|uname|cat\s+/etc/passwd|sleep\s+\d+)[^\x60]{0,40}\x60`,
		Fields:     []traffic.FieldKind{url, request},
		Confidence: finding.ConfidenceMedium, Severity: finding.Critical, CWE: "CWE-78",
	},
	{
		ID: "cmdi-windows", Category: finding.CommandInjection, Subkind: "windows_shell",
		Name:       "Command Injection (Windows shell)",
		Expression: `(?:&|\||;)\s*(?:cmd(?:\.exe)?\s+/c|powershell(?:\.exe)?\s+-(?:c|enc|command)|ipconfig\s+/all|net\s+user)\b`,
		Fields:     []traffic.FieldKind{url, request},
		Confidence: finding.ConfidenceMedium, Severity: finding.Critical, CWE: "CWE-78",
	},
}

var pathTraversalRules = []Rule{
	{
		ID: "traversal-passwd", Category: finding.PathTraversal, Subkind: "file_disclosure",
		Name:          "Path Traversal (/etc/passwd disclosed)",
		Expression:    `root:[x*]?:0:0:[^:\n]*:/root:[^\n]{0,40}`,
		CaseSensitive: true,
		Fields:        []traffic.FieldKind{response},
		Confidence:    finding.ConfidenceCertain, Severity: finding.Critical, CWE: "CWE-22",
		Remediation: "Resolve paths against an allow-listed base directory.",
	},
	{
		ID: "traversal-win-ini", Category: finding.PathTraversal, Subkind: "file_disclosure",
		Name:       "Path Traversal (win.ini disclosed)",
		Expression: `; for 16-bit app support\s+\[(?:fonts|extensions)\]`,
		Fields:     []traffic.FieldKind{response},
		Confidence: finding.ConfidenceCertain, Severity: finding.Critical, CWE: "CWE-22",
	},
	{
		ID: "traversal-encoded", Category: finding.PathTraversal, Subkind: "encoded_traversal",
		Name:       "Path Traversal (encoded)",
		Expression: `(?:%2e%2e(?:%2f|%5c|/|\\)|%252e%252e%252f|\.\.%2f|\.\.%5c|\.\.%c0%af|%c0%ae%c0%ae/|\.\.%255c)[\w%./\\-]{0,80}`,
		Fields:     []traffic.FieldKind{url, request},
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-22",
	},
	{
		ID: "traversal-dotdot", Category: finding.PathTraversal, Subkind: "dot_dot",
		Name:       "Path Traversal (dot-dot segments)",
		Expression: `(?:\.\.[/\\])+[\w.~-]*(?:[/\\][\w.~-]+){0,8}`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-22",
	},
}

var sensitiveDataRules = []Rule{
	{
		ID: "secret-private-key", Category: finding.SensitiveData, Subkind: "private_key",
		Expression:    `-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`,
		CaseSensitive: true,
		Confidence:    finding.ConfidenceCertain, Severity: finding.Critical, CWE: "CWE-312",
	},
	{
		ID: "secret-aws-access-key", Category: finding.SensitiveData, Subkind: "aws_access_key",
		Name:          "AWS Access Key",
		Expression:    `\b(?P<value>(?:AKIA|ASIA|AGPA|AIDA|AROA)[0-9A-Z]{16})\b`,
		CaseSensitive: true,
		Confidence:    finding.ConfidenceHigh, Severity: finding.Critical, CWE: "CWE-798",
	},
	{
		ID: "secret-aws-secret-key", Category: finding.SensitiveData, Subkind: "aws_secret_key",
		Name:       "AWS Secret Key",
		Expression: `aws.{0,20}?(?:secret|key).{0,20}?['"](?P<value>[0-9a-zA-Z/+]{40})['"]`,
		Confidence: finding.ConfidenceHigh, Severity: finding.Critical, CWE: "CWE-798",
	},
	{
		ID: "secret-github-token", Category: finding.SensitiveData, Subkind: "github_token",
		Name:          "GitHub Token",
		Expression:    `\b(?P<value>gh[pousr]_[A-Za-z0-9]{36,255}|github_pat_[A-Za-z0-9_]{22,255})\b`,
		CaseSensitive: true,
		Confidence:    finding.ConfidenceHigh, Severity: finding.Critical, CWE: "CWE-798",
	},
	{
		ID: "secret-slack-token", Category: finding.SensitiveData, Subkind: "slack_token",
		Expression:    `\b(?P<value>xox[baprs]-[0-9A-Za-z-]{10,72})`,
		CaseSensitive: true,
		Confidence:    finding.ConfidenceHigh, Severity: finding.Critical, CWE: "CWE-798",
	},
	{
		ID: "secret-google-api-key", Category: finding.SensitiveData, Subkind: "google_api_key",
		Name:          "Google API Key",
		Expression:    `\b(?P<value>AIza[0-9A-Za-z_-]{35})`,
		CaseSensitive: true,
		Confidence:    finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-798",
	},
	{
		ID: "secret-stripe-key", Category: finding.SensitiveData, Subkind: "stripe_key",
		Expression:    `\b(?P<value>(?:sk|rk)_live_[0-9a-zA-Z]{24,99})\b`,
		CaseSensitive: true,
		Confidence:    finding.ConfidenceHigh, Severity: finding.Critical, CWE: "CWE-798",
	},
	{
		ID: "secret-jwt", Category: finding.SensitiveData, Subkind: "jwt",
		Name:          "JSON Web Token",
		Expression:    `\b(?P<value>eyJ[A-Za-z0-9_-]{5,}\.eyJ[A-Za-z0-9_-]{5,}\.[A-Za-z0-9_-]*)`,
		CaseSensitive: true,
		Confidence:    finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-200",
	},
	{
		ID: "secret-bearer-token", Category: finding.SensitiveData, Subkind: "bearer_token",
		Expression: `\bbearer\s+(?P<value>[A-Za-z0-9._~+/-]{10,}=*)`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-200",
	},
	{
		ID: "secret-basic-auth", Category: finding.SensitiveData, Subkind: "basic_auth",
		Name:       "Basic Auth Credentials",
		Expression: `\bauthorization:\s*basic\s+(?P<value>[A-Za-z0-9+/]{8,}={0,2})`,
		Fields:     []traffic.FieldKind{request},
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-522",
	},
	{
		ID: "secret-api-key", Category: finding.SensitiveData, Subkind: "api_key",
		Name:       "API Key",
		Expression: `\b(?:api[_-]?key|apikey|access[_-]?token|secret[_-]?key|client[_-]?secret|auth[_-]?token)["']?\s*[:=]\s*["']?(?P<value>[A-Za-z0-9_\-./+]{8,128})`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-798",
	},
	{
		ID: "secret-password", Category: finding.SensitiveData, Subkind: "password",
		Name:       "Password",
		Expression: `\b(?:password|passwd|pwd|pass)["']?\s*[:=]\s*["']?(?P<value>[^\s"'&<>,;]{1,64})`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-256",
	},
	{
		ID: "pii-credit-card", Category: finding.SensitiveData, Subkind: "credit_card",
		Name:       "Credit Card Number",
		Expression: `\b(?P<value>\d(?:[ -]?\d){12,18})\b`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-359",
	},
	{
		ID: "pii-ssn", Category: finding.SensitiveData, Subkind: "ssn",
		Name:       "US Social Security Number",
		Expression: `\b(?P<value>\d{3}-\d{2}-\d{4})\b`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-359",
	},
	{
		ID: "pii-email", Category: finding.SensitiveData, Subkind: "email",
		Name:       "Email Address",
		Expression: `\b(?P<value>[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,24})\b`,
		Confidence: finding.ConfidenceMedium, Severity: finding.Low, CWE: "CWE-200",
	},
}

var missingHeaderRules = []Rule{
	{
		ID: "header-x-frame-options", Category: finding.MissingHeader, Subkind: "x_frame_options",
		Name:       "Missing X-Frame-Options",
		Absent:     true,
		Trigger:    `(?m)^set-cookie:`,
		Expression: `(?m)^(?:x-frame-options:|content-security-policy:.*\bframe-ancestors\b)`,
		Evidence:   "X-Frame-Options header missing on a response that sets cookies",
		Confidence: finding.ConfidenceCertain, Severity: finding.Medium, CWE: "CWE-1021",
		Remediation: "Send X-Frame-Options: DENY or a CSP frame-ancestors directive.",
	},
	{
		ID: "header-hsts", Category: finding.MissingHeader, Subkind: "strict_transport_security",
		Name:       "Missing Strict-Transport-Security",
		Absent:     true,
		Scheme:     "https",
		Trigger:    `(?m)^set-cookie:`,
		Expression: `(?m)^strict-transport-security:`,
		Evidence:   "Strict-Transport-Security header missing on an HTTPS response that sets cookies",
		Confidence: finding.ConfidenceHigh, Severity: finding.Low, CWE: "CWE-319",
	},
	{
		ID: "header-x-content-type-options", Category: finding.MissingHeader, Subkind: "x_content_type_options",
		Name:       "Missing X-Content-Type-Options",
		Absent:     true,
		Trigger:    `(?m)^content-type:\s*text/html`,
		Expression: `(?m)^x-content-type-options:\s*nosniff`,
		Evidence:   "X-Content-Type-Options: nosniff missing on an HTML response",
		Confidence: finding.ConfidenceHigh, Severity: finding.Low, CWE: "CWE-693",
	},
	{
		ID: "header-csp", Category: finding.MissingHeader, Subkind: "content_security_policy",
		Name:       "Missing Content-Security-Policy",
		Absent:     true,
		Trigger:    `(?m)^content-type:\s*text/html`,
		Expression: `(?m)^content-security-policy:`,
		Evidence:   "Content-Security-Policy header missing on an HTML response",
		Confidence: finding.ConfidenceMedium, Severity: finding.Low, CWE: "CWE-693",
	},
}

var backupFileRules = []Rule{
	{
		ID: "backup-dump", Category: finding.BackupFileExposure, Subkind: "database_dump",
		Name:       "Database or Site Dump",
		Expression: `/(?:backup|dump|db|database|site|www|data)\.(?:sql|sql\.gz|zip|tar|tar\.gz|tgz|rar|7z)(?:$|[?#])`,
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-530",
		Remediation: "Remove backups from the web root and deny archive extensions.",
	},
	{
		ID: "backup-extension", Category: finding.BackupFileExposure, Subkind: "backup_extension",
		Name:       "Backup File",
		Expression: `/[^/?#]+\.(?:bak|backup|old|orig|save|sav|swp|tmp|dist|copy)(?:$|[?#])|/[^/?#]+~(?:$|[?#])`,
		Confidence: finding.ConfidenceMedium, Severity: finding.Medium, CWE: "CWE-530",
	},
	{
		ID: "backup-archive", Category: finding.BackupFileExposure, Subkind: "archive",
		Name:       "Archive File",
		Expression: `/[^/?#]+\.(?:sql|zip|tar|tar\.gz|tgz|rar|7z|gz)(?:$|[?#])`,
		Confidence: finding.ConfidenceLow, Severity: finding.Medium, CWE: "CWE-530",
	},
}

var sensitiveEndpointRules = []Rule{
	{
		ID: "endpoint-vcs", Category: finding.SensitiveEndpoint, Subkind: "vcs_metadata",
		Name:       "Version Control Metadata",
		Expression: `/\.(?:git|svn|hg|bzr)(?:/|$|[?#])[^?#]{0,60}`,
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-527",
		Remediation: "Deny access to VCS directories at the web server.",
	},
	{
		ID: "endpoint-env-file", Category: finding.SensitiveEndpoint, Subkind: "env_file",
		Name:       "Environment File",
		Expression: `/\.env(?:\.[a-z]+)?(?:$|[?#])`,
		Confidence: finding.ConfidenceHigh, Severity: finding.High, CWE: "CWE-538",
	},
	{
		ID: "endpoint-actuator", Category: finding.SensitiveEndpoint, Subkind: "actuator",
		Name:       "Spring Boot Actuator",
		Expression: `/actuator(?:/(?:env|heapdump|mappings|configprops|beans|trace|httptrace|loggers|threaddump))?(?:/|$|[?#])`,
		Confidence: finding.ConfidenceMedium, Severity: finding.High, CWE: "CWE-215",
	},
	{
		ID: "endpoint-admin", Category: finding.SensitiveEndpoint, Subkind: "admin_console",
		Name:       "Admin Console",
		Expression: `/(?:admin|administrator|wp-admin|phpmyadmin|manager/html|jmx-console|console)(?:/|$|[?#])`,
		Confidence: finding.ConfidenceMedium, Severity: finding.Medium, CWE: "CWE-284",
	},
	{
		ID: "endpoint-phpinfo", Category: finding.SensitiveEndpoint, Subkind: "phpinfo",
		Name:       "PHP Info Page",
		Expression: `/(?:phpinfo|info|php_info|test)\.php(?:$|[?#])`,
		Confidence: finding.ConfidenceMedium, Severity: finding.Medium, CWE: "CWE-200",
	},
	{
		ID: "endpoint-server-status", Category: finding.SensitiveEndpoint, Subkind: "server_status",
		Name:       "Server Status Page",
		Expression: `/server-(?:status|info)(?:/|$|[?#])`,
		Confidence: finding.ConfidenceMedium, Severity: finding.Medium, CWE: "CWE-200",
	},
}
