package validation

import "regexp"

// Category names an attack-pattern family. Categories are checked in a
// fixed, documented order; the first match wins and later categories are not
// evaluated for that input.
type Category string

const (
	CategorySQLInjection      Category = "sql_injection"
	CategoryXSS               Category = "xss"
	CategoryCommandInjection  Category = "command_injection"
	CategoryPathTraversal     Category = "path_traversal"
	CategoryXXE               Category = "xxe"
	CategoryNoSQLInjection    Category = "nosql_injection"
	CategoryLDAPInjection     Category = "ldap_injection"
	CategoryHeaderInjection   Category = "header_injection"
	CategoryTemplateInjection Category = "template_injection"
)

// rule is one immutable, process-wide pattern category. Rules are compiled
// once per Engine and shared read-only across all concurrent requests.
type rule struct {
	category Category
	reason   string
	weight   uint32
	// lowercase inputs before matching; documented for the SQL and XSS
	// families where mixed-case evasion is common.
	lowercase bool
	patterns  []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile(expr)
	}
	return compiled
}

var sqlPatterns = compile(
	`(?i)\bunion.+select`,
	`(?i)drop\s+(table|database)`,
	`(?i)'\s*or\s+'?\d+'?\s*=\s*'?\d+`,
	`(?i)'\s*or\s+'?\w+'\s*=\s*'?\w+`,
	`(?i);?\s*--`,
	`(?i);?\s*#`,
	`(?i)\/\*\*\/`,
	`(?i)'\s*;\s*drop`,
	`(?i)'\s*;\s*select`,
	`(?i)exec\s*\(`,
	`(?i)execute\s*\(`,
	`(?i)xp_cmdshell`,
	`(?i)sp_executesql`,
	`(?i)information_schema`,
	`(?i)sysobjects`,
	`(?i)syscolumns`,
)

var xssPatterns = compile(
	`(?i)<script`,
	`(?i)on(click|error|load|mouseover|mouseout|keydown|keyup|keypress|submit|change|focus|blur)\s*=`,
	`(?i)javascript:`,
	`(?i)vbscript:`,
	`(?i)data:text/html`,
	`(?i)<iframe`,
	`(?i)<(object|embed)`,
	`(?i)<meta.*url=javascript`,
	`(?i)expression\s*\(`,
	`(?i)<img[^>]*\bonerror\s*=`,
	`(?i)<link[^>]*\shref\s*=\s*javascript:`,
)

var commandPatterns = compile(
	`;\s*(/bin|/usr|/sbin)`,
	`;\s*(rm|ls|cat|echo|wget|curl|nc|netcat|nmap|ping)`,
	`\|\s*(/bin|/usr|/sbin)`,
	`\|\s*(rm|ls|cat|echo|wget|curl|nc|netcat|nmap|ping)`,
	`(&&|\|\|)\s*(/bin|/usr|/sbin)`,
	`(&&|\|\|)\s*(rm|ls|cat|echo|wget|curl|nc|netcat|nmap|ping)`,
	"`[^`]*`",
	`\$\([^)]*\)`,
	`[<>]\s*(/etc|/proc|/home|/root|/var)`,
	`%00`,
	`\\x00`,
)

var pathTraversalPatterns = compile(
	`(\.\./){2,}`,
	`(\.\.\\){2,}`,
	`(\.\.[/\\]){2,}`,
	`(?i)%2e%2e[/\\]`,
	`(?i)%2e%2e%2f`,
	`(?i)%2e%2e%5c`,
	`(?i)%252e%252e`,
	`/etc/`,
	`/proc/`,
	`/home/`,
	`/root/`,
	`\\windows\\`,
	`\\system32\\`,
	`(?i)c:\\`,
	`(?i)%2fetc%2f`,
	`(?i)%5cwindows%5c`,
)

var xxePatterns = compile(
	`(?i)<!DOCTYPE.*SYSTEM`,
	`(?i)<!ENTITY.*SYSTEM`,
	`(?i)<!ENTITY\s+%`,
	`(?i)SYSTEM\s*["']file://`,
)

var nosqlPatterns = compile(
	`[{,]\s*"?\$[a-z]+"?\s*:`,
	`(?i)\{\s*"?\$where`,
	`(?i)\{.*"?\$regex`,
	`(?i)\[\s*\$`,
)

var ldapPatterns = compile(
	`\(\s*[|&!]\s*\([^)]+\)`,
	`\*\)`,
	`(\*|[()]){2,}`,
)

var headerInjectionPatterns = compile(
	"[\r\n]",
	`(?i)%0[ad]`,
	`(?i)%00`,
)

var templateInjectionPatterns = compile(
	`\{\{.*\}\}|\{%.*%\}`,
	`<%.*%>`,
	`\$\{.*\}`,
	`\[#.*\]`,
)
