// Package scanner implements the nine-category weighted pattern engine
// (C3): it assigns every skill a risk score and a set of findings, then
// recommends safe/review/quarantine routing.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/skill"
)

// Version is the scanner's declared version, part of a scan's determinism
// key (content, scanner_version, tier_config).
const Version = "1.0.0"

// Config configures a scan pass.
type Config struct {
	ScannerVersion  string
	AllowedURLHosts []string
	TierThreshold   float64
}

var urlPattern = regexp.MustCompile(`https?://([^\s/"')>]+)`)

// Scan runs the whole-document, per-line and URL passes over content and
// returns a deterministic ScanResult.
func Scan(content string, cfg Config) skill.ScanResult {
	log := logging.Get(logging.CategoryScanner)
	timer := logging.StartTimer(logging.CategoryScanner, "scan")
	defer timer.Stop()

	version := cfg.ScannerVersion
	if version == "" {
		version = Version
	}

	docContexts := documentationSpans(content)

	var findings []skill.Finding
	findings = append(findings, wholeDocumentPass(content, docContexts)...)
	findings = append(findings, lineByLinePass(content, docContexts)...)
	findings = append(findings, urlPass(content, cfg.AllowedURLHosts, docContexts)...)
	SortFindings(findings)

	riskScore := 0.0
	for _, f := range findings {
		riskScore += severityBase[parseSeverity(f.Severity)] * categoryWeight[string(f.Category)] * confidenceMultiplier[string(f.Confidence)]
	}

	recommendation := recommend(findings, riskScore, cfg.TierThreshold)

	log.Debugw("scan complete", "risk_score", riskScore, "findings", len(findings), "recommendation", recommendation)

	sum := sha256.Sum256([]byte(content))

	return skill.ScanResult{
		SkillContentHash: hex.EncodeToString(sum[:]),
		RiskScore:      riskScore,
		Findings:       findings,
		Recommendation: recommendation,
		ScannerVersion: version,
		Timestamp:      time.Now().UTC(),
	}
}

func parseSeverity(s skill.Severity) severityLevel {
	switch s {
	case skill.SeverityCritical:
		return sevCritical
	case skill.SeverityHigh:
		return sevHigh
	case skill.SeverityMedium:
		return sevMedium
	default:
		return sevLow
	}
}

func severityToSkill(s severityLevel) skill.Severity {
	switch s {
	case sevCritical:
		return skill.SeverityCritical
	case sevHigh:
		return skill.SeverityHigh
	case sevMedium:
		return skill.SeverityMedium
	default:
		return skill.SeverityLow
	}
}

// span is a half-open [start,end) byte range.
type span struct{ start, end int }

func (s span) contains(pos int) bool { return pos >= s.start && pos < s.end }

// documentationSpans finds fenced code blocks and Markdown table rows; a
// finding whose offset falls inside one of these has its confidence
// lowered by one step.
func documentationSpans(content string) []span {
	var spans []span
	for _, loc := range fencedCodeBlock.FindAllStringIndex(content, -1) {
		spans = append(spans, span{loc[0], loc[1]})
	}

	offset := 0
	for _, line := range strings.Split(content, "\n") {
		if tableRowPattern.MatchString(line) {
			spans = append(spans, span{offset, offset + len(line)})
		}
		offset += len(line) + 1
	}
	return spans
}

func inDocContext(pos int, spans []span) bool {
	for _, s := range spans {
		if s.contains(pos) {
			return true
		}
	}
	return false
}

func confidenceFor(sev severityLevel, pos int, spans []span) skill.Confidence {
	conf := skill.ConfidenceHigh
	if sev == sevLow || sev == sevMedium {
		conf = skill.ConfidenceMedium
	}
	if sev == sevCritical || sev == sevHigh {
		conf = skill.ConfidenceHigh
	}
	if inDocContext(pos, spans) {
		conf = conf.Lower()
	}
	return conf
}

func excerpt(content string, start, end int) string {
	lo := start - 20
	if lo < 0 {
		lo = 0
	}
	hi := end + 20
	if hi > len(content) {
		hi = len(content)
	}
	return strings.TrimSpace(content[lo:hi])
}

// multilineCategories lists the categories whose multiline patterns are
// evaluated against the whole document rather than per line. The only such
// pattern is ai_defence's HTML-comment override, which can span lines; no
// CRLF or delimiter-injection pattern is defined.
var multilineCategories = map[string]bool{
	"ai_defence": true,
}

func wholeDocumentPass(content string, docSpans []span) []skill.Finding {
	var findings []skill.Finding
	for category, patterns := range categoryPatterns {
		if !multilineCategories[category] {
			continue
		}
		for _, p := range patterns {
			if !p.multiline {
				continue
			}
			for _, loc := range p.re.FindAllStringIndex(content, -1) {
				findings = append(findings, skill.Finding{
					Category:      skill.Category(category),
					Severity:      severityToSkill(p.severity),
					Confidence:    confidenceFor(p.severity, loc[0], docSpans),
					MatchedOffset: loc[0],
					MatchedLength: loc[1] - loc[0],
					Excerpt:       excerpt(content, loc[0], loc[1]),
				})
			}
		}
	}
	return findings
}

func lineByLinePass(content string, docSpans []span) []skill.Finding {
	var findings []skill.Finding
	offset := 0
	for _, line := range strings.Split(content, "\n") {
		for category, patterns := range categoryPatterns {
			for _, p := range patterns {
				if p.multiline {
					continue
				}
				for _, loc := range p.re.FindAllStringIndex(line, -1) {
					pos := offset + loc[0]
					findings = append(findings, skill.Finding{
						Category:      skill.Category(category),
						Severity:      severityToSkill(p.severity),
						Confidence:    confidenceFor(p.severity, pos, docSpans),
						MatchedOffset: pos,
						MatchedLength: loc[1] - loc[0],
						Excerpt:       excerpt(content, pos, offset+loc[1]),
					})
				}
			}
		}
		offset += len(line) + 1
	}
	return findings
}

func urlPass(content string, allowedHosts []string, docSpans []span) []skill.Finding {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[strings.ToLower(h)] = true
	}

	var findings []skill.Finding
	for _, loc := range urlPattern.FindAllStringSubmatchIndex(content, -1) {
		host := content[loc[2]:loc[3]]
		if idx := strings.IndexAny(host, ":/"); idx != -1 {
			host = host[:idx]
		}
		if allowed[strings.ToLower(host)] {
			continue
		}
		findings = append(findings, skill.Finding{
			Category:      skill.CategoryNonAllowlistedURL,
			Severity:      skill.SeverityLow,
			Confidence:    confidenceFor(sevLow, loc[0], docSpans),
			MatchedOffset: loc[0],
			MatchedLength: loc[1] - loc[0],
			Excerpt:       excerpt(content, loc[0], loc[1]),
		})
	}
	return findings
}

func recommend(findings []skill.Finding, riskScore, threshold float64) skill.Recommendation {
	hasCritical := false
	hasHighOrMedium := false
	for _, f := range findings {
		switch f.Severity {
		case skill.SeverityCritical:
			hasCritical = true
		case skill.SeverityHigh, skill.SeverityMedium:
			hasHighOrMedium = true
		}
	}

	if hasCritical {
		return skill.RecommendQuarantine
	}
	if threshold > 0 && riskScore >= threshold {
		return skill.RecommendQuarantine
	}
	if hasHighOrMedium {
		return skill.RecommendReview
	}
	return skill.RecommendSafe
}

// SortFindings orders findings deterministically by offset then category,
// useful for stable test assertions and display.
func SortFindings(findings []skill.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].MatchedOffset != findings[j].MatchedOffset {
			return findings[i].MatchedOffset < findings[j].MatchedOffset
		}
		return findings[i].Category < findings[j].Category
	})
}
