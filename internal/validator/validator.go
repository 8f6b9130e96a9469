// Package validator turns raw fetched bytes into a structured candidate
// skill, rejecting content that cannot be safely indexed (C2).
package validator

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smith-horn/skillsmith/internal/logging"
)

var headingPattern = regexp.MustCompile(`(?m)^#\s+\S`)

// Options configures a validation pass.
type Options struct {
	MinContentLength int
	MaxContentBytes  int64 // 0 means unlimited; normally the candidate's tier limit
	Strict           bool
	RepositoryOwner  string // used to infer a missing author
}

// Frontmatter is the parsed YAML block, preserving unknown fields verbatim.
type Frontmatter struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Author         string   `yaml:"author"`
	Tags           []string `yaml:"tags"`
	Category       string   `yaml:"category"`
	Roles          []string `yaml:"roles"`
	TriggerPhrases []string `yaml:"triggers"`
	Extra          map[string]interface{} `yaml:"-"`
}

// ValidatedSkill is the structured result of a successful validation pass.
type ValidatedSkill struct {
	Name           string
	Description    string
	Author         string
	Tags           []string
	Category       string
	Roles          []string
	TriggerPhrases []string
	Body           string // canonical body the scanner and hasher operate on
	HasFrontmatter bool
	Repaired       []string // which auto-repair fallbacks were applied
}

// Error reports why validation rejected a candidate.
type Error struct {
	Rule    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed at rule %q: %s", e.Rule, e.Message)
}

// Validate applies the ordered rule set to raw content and returns either a
// ValidatedSkill or a structured Error. Validation failures are never
// fatal for the caller's pipeline; they are returned for logging and
// exclusion bookkeeping.
func Validate(raw []byte, opts Options) (*ValidatedSkill, error) {
	log := logging.Get(logging.CategoryValidator)

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, &Error{Rule: "non_empty", Message: "content is empty after trimming whitespace"}
	}

	if opts.MaxContentBytes > 0 && int64(len(raw)) > opts.MaxContentBytes {
		return nil, &Error{Rule: "max_content_bytes", Message: fmt.Sprintf("content size %d bytes exceeds tier limit %d bytes", len(raw), opts.MaxContentBytes)}
	}

	minLen := opts.MinContentLength
	if minLen <= 0 {
		minLen = 100
	}
	if len(trimmed) < minLen {
		return nil, &Error{Rule: "min_length", Message: fmt.Sprintf("content length %d is below minimum %d", len(trimmed), minLen)}
	}

	if !headingPattern.MatchString(trimmed) {
		return nil, &Error{Rule: "top_level_heading", Message: "no top-level Markdown heading (^# ) found"}
	}

	fm, body, hasFrontmatter, err := parseFrontmatter(trimmed)
	if err != nil {
		return nil, &Error{Rule: "frontmatter_parse", Message: err.Error()}
	}

	if opts.Strict && !hasFrontmatter {
		return nil, &Error{Rule: "frontmatter_required", Message: "strict mode requires frontmatter to be present"}
	}

	if hasFrontmatter {
		if fm.Name == "" {
			return nil, &Error{Rule: "frontmatter_name", Message: "frontmatter name is required when frontmatter is present"}
		}
		if fm.Description != "" && len(fm.Description) < 20 {
			return nil, &Error{Rule: "frontmatter_description_length", Message: "frontmatter description must be at least 20 characters"}
		}
	} else if opts.Strict {
		return nil, &Error{Rule: "frontmatter_required", Message: "strict mode requires frontmatter to be present"}
	}

	var repaired []string
	name := fm.Name
	if name == "" {
		name = deriveNameFromHeading(body)
	}

	author := fm.Author
	if author == "" {
		if opts.Strict {
			return nil, &Error{Rule: "author_required", Message: "strict mode disables the missing-author fallback"}
		}
		author = opts.RepositoryOwner
		repaired = append(repaired, "author")
	}

	description := fm.Description
	if description == "" {
		if opts.Strict {
			return nil, &Error{Rule: "description_required", Message: "strict mode disables the missing-description fallback"}
		}
		description = name
		repaired = append(repaired, "description")
	}

	log.Debugw("validated candidate", "name", name, "author", author, "repaired", repaired)

	return &ValidatedSkill{
		Name:           name,
		Description:    description,
		Author:         author,
		Tags:           fm.Tags,
		Category:       fm.Category,
		Roles:          fm.Roles,
		TriggerPhrases: fm.TriggerPhrases,
		Body:           body,
		HasFrontmatter: hasFrontmatter,
		Repaired:       repaired,
	}, nil
}

// parseFrontmatter splits leading `---` YAML fences from the document body.
// Extra/unknown fields are preserved by decoding into both the typed struct
// and a raw map so callers can inspect fields not in Frontmatter.
func parseFrontmatter(content string) (Frontmatter, string, bool, error) {
	if !strings.HasPrefix(content, "---") {
		return Frontmatter{}, content, false, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines []string
	if scanner.Scan() {
		lines = append(lines, scanner.Text()) // consume the opening ---
	}

	var fmLines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		fmLines = append(fmLines, line)
	}
	if !closed {
		return Frontmatter{}, content, false, fmt.Errorf("frontmatter opening fence is not closed")
	}

	var fm Frontmatter
	raw := strings.Join(fmLines, "\n")
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return Frontmatter{}, content, false, fmt.Errorf("invalid frontmatter YAML: %w", err)
	}
	var extra map[string]interface{}
	_ = yaml.Unmarshal([]byte(raw), &extra)
	fm.Extra = extra

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
	return fm, body, true, nil
}

func deriveNameFromHeading(body string) string {
	loc := headingPattern.FindStringIndex(body)
	if loc == nil {
		return ""
	}
	line := body[loc[0]:]
	if idx := strings.IndexByte(line, '\n'); idx != -1 {
		line = line[:idx]
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "#"))
}
