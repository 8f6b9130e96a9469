package scanner

import "regexp"

// pattern is one compiled detector within a category.
type pattern struct {
	re         *regexp.Regexp
	severity   severityLevel
	multiline  bool // runs against the whole document rather than per-line
}

type severityLevel int

const (
	sevLow severityLevel = iota
	sevMedium
	sevHigh
	sevCritical
)

// categoryWeight maps each of the nine scanner categories to its
// multiplicative weight, per the table in spec.md §4.3.
var categoryWeight = map[string]float64{
	"jailbreak":            2.0,
	"ai_defence":           1.9,
	"privilege_escalation": 1.9,
	"prompt_leaking":       1.8,
	"data_exfiltration":    1.7,
	"social_engineering":   1.5,
	"suspicious_code":      1.3,
	"sensitive_file":       1.2,
	"non_allowlisted_url":  0.8,
}

var severityBase = map[severityLevel]float64{
	sevLow:      5,
	sevMedium:   15,
	sevHigh:     30,
	sevCritical: 50,
}

var confidenceMultiplier = map[string]float64{
	"high":   1.0,
	"medium": 0.7,
	"low":    0.3,
}

// categoryPatterns groups compiled detectors by category. Patterns are
// deliberately conservative (anchored on recognizable phrasing/command
// shapes) to keep the false-positive rate manageable; a documentation
// context (fenced code block or table) still lowers confidence by one step
// rather than suppressing the finding entirely.
var categoryPatterns = map[string][]pattern{
	"jailbreak": {
		{re: regexp.MustCompile(`(?i)ignore (all|any|the|previous|prior) (previous |prior )?instructions`), severity: sevCritical},
		{re: regexp.MustCompile(`(?i)developer mode`), severity: sevHigh},
		{re: regexp.MustCompile(`(?i)bypass (safety|guardrails|restrictions|filters)`), severity: sevCritical},
		{re: regexp.MustCompile(`(?i)disregard (your|all|the) (rules|guidelines|policies)`), severity: sevHigh},
	},
	"ai_defence": {
		{re: regexp.MustCompile(`(?m)^\s*(system|assistant)\s*:`), severity: sevHigh},
		{re: regexp.MustCompile(`\[\[.*(hidden|secret).*instruction.*\]\]`), severity: sevHigh},
		{re: regexp.MustCompile(`<!--[\s\S]*?(ignore|override|system)[\s\S]*?-->`), severity: sevHigh, multiline: true},
		{re: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}]`), severity: sevMedium},
		{re: regexp.MustCompile(`(?i)base64\.?(decode|b64decode)\(`), severity: sevMedium},
	},
	"privilege_escalation": {
		{re: regexp.MustCompile(`\bsudo\s+-S\b`), severity: sevCritical},
		{re: regexp.MustCompile(`\bchmod\s+777\b`), severity: sevHigh},
		{re: regexp.MustCompile(`\bsetuid\b`), severity: sevHigh},
		{re: regexp.MustCompile(`(?i)sudoers`), severity: sevHigh},
		{re: regexp.MustCompile(`\bchown\s+root\b`), severity: sevHigh},
	},
	"prompt_leaking": {
		{re: regexp.MustCompile(`(?i)reveal your (system )?prompt`), severity: sevHigh},
		{re: regexp.MustCompile(`(?i)show me your (system )?instructions`), severity: sevHigh},
		{re: regexp.MustCompile(`(?i)print (your|the) (system )?prompt`), severity: sevHigh},
	},
	"data_exfiltration": {
		{re: regexp.MustCompile(`(?i)base64\.?(encode|b64encode)\(`), severity: sevMedium},
		{re: regexp.MustCompile(`(?i)\bnew WebSocket\(`), severity: sevHigh},
		{re: regexp.MustCompile(`\?[\w]+=\$\{?[\w.]+\}?`), severity: sevMedium},
		{re: regexp.MustCompile(`(?i)\bexfiltrate\b`), severity: sevHigh},
	},
	"social_engineering": {
		{re: regexp.MustCompile(`(?i)pretend (to|you are) be`), severity: sevMedium},
		{re: regexp.MustCompile(`(?i)pretend you are`), severity: sevMedium},
		{re: regexp.MustCompile(`(?i)roleplay as`), severity: sevMedium},
		{re: regexp.MustCompile(`(?i)act as if`), severity: sevLow},
	},
	"suspicious_code": {
		{re: regexp.MustCompile(`\beval\(`), severity: sevHigh},
		{re: regexp.MustCompile(`\brm\s+-rf\b`), severity: sevHigh},
		{re: regexp.MustCompile(`curl[^\n|]*\|\s*(ba)?sh\b`), severity: sevCritical},
		{re: regexp.MustCompile(`wget[^\n|]*\|\s*(ba)?sh\b`), severity: sevCritical},
		{re: regexp.MustCompile(`(?i)\bexec\(`), severity: sevMedium},
	},
	"sensitive_file": {
		{re: regexp.MustCompile(`\.env\b`), severity: sevMedium},
		{re: regexp.MustCompile(`(?i)credentials`), severity: sevLow},
		{re: regexp.MustCompile(`\.pem\b`), severity: sevMedium},
		{re: regexp.MustCompile(`\.ssh\b`), severity: sevMedium},
		{re: regexp.MustCompile(`\.aws\b`), severity: sevMedium},
		{re: regexp.MustCompile(`\.key\b`), severity: sevMedium},
		{re: regexp.MustCompile(`(?i)password[s]?\.txt\b`), severity: sevMedium},
	},
}

// fencedCodeBlock matches ``` ... ``` blocks; tableRow matches a Markdown
// table row (pipe-delimited with at least two pipes).
var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*?```")
	tableRowPattern = regexp.MustCompile(`^\s*\|.*\|.*\|\s*$`)
)
