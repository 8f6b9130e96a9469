// Package skill defines the core data model shared by every skillsmith
// component: the Skill entity, trust tiers, scan findings and results,
// quarantine entries, queries, search results, and recommendation context.
package skill

import "time"

// TrustTier is an ordered classification of a skill's trustworthiness. It
// gates scanner strictness and display treatment.
type TrustTier string

const (
	TierVerified     TrustTier = "verified"
	TierCurated      TrustTier = "curated"
	TierCommunity    TrustTier = "community"
	TierExperimental TrustTier = "experimental"
	TierUnknown      TrustTier = "unknown"
	TierLocal        TrustTier = "local"
)

// tierOrder gives each tier a rank for ordering/comparison; lower is more trusted.
var tierOrder = map[TrustTier]int{
	TierVerified:     0,
	TierCurated:      1,
	TierCommunity:    2,
	TierExperimental: 3,
	TierUnknown:      4,
	TierLocal:        5,
}

// Rank returns the ordering rank of the tier; unknown tiers rank last.
func (t TrustTier) Rank() int {
	if r, ok := tierOrder[t]; ok {
		return r
	}
	return len(tierOrder)
}

// Valid reports whether t is one of the known enum members.
func (t TrustTier) Valid() bool {
	_, ok := tierOrder[t]
	return ok
}

// TierConfig carries the scanner configuration a trust tier gates.
type TierConfig struct {
	RiskThreshold   float64
	MaxContentBytes int64
}

// DefaultTierConfigs returns the default {risk_threshold, max_content_bytes}
// per tier.
func DefaultTierConfigs() map[TrustTier]TierConfig {
	return map[TrustTier]TierConfig{
		TierVerified:     {RiskThreshold: 70, MaxContentBytes: 2 << 20},
		TierCurated:      {RiskThreshold: 60, MaxContentBytes: 2 << 20},
		TierCommunity:    {RiskThreshold: 40, MaxContentBytes: 1 << 20},
		TierExperimental: {RiskThreshold: 25, MaxContentBytes: 500 << 10},
		TierUnknown:      {RiskThreshold: 20, MaxContentBytes: 250 << 10},
		TierLocal:        {RiskThreshold: 1 << 30, MaxContentBytes: 10 << 20},
	}
}

// ScanStatus is the lifecycle state of a Skill's most recent scan.
type ScanStatus string

const (
	ScanSafe       ScanStatus = "safe"
	ScanReview     ScanStatus = "review"
	ScanQuarantine ScanStatus = "quarantine"
)

// Compatibility declares which host surfaces and model families a skill
// targets.
type Compatibility struct {
	IDEs []string `json:"ides,omitempty"`
	LLMs []string `json:"llms,omitempty"`
}

// Intersects reports whether two declared compatibility sets overlap. An
// empty/zero Compatibility is treated as "unknown" and always passes a
// filter (permissive semantics, see the search filter rules).
func (c Compatibility) Intersects(want Compatibility) bool {
	if len(want.IDEs) == 0 && len(want.LLMs) == 0 {
		return true
	}
	if len(c.IDEs) == 0 && len(c.LLMs) == 0 {
		return true // unknown compatibility always passes
	}
	for _, ide := range want.IDEs {
		for _, have := range c.IDEs {
			if ide == have {
				return true
			}
		}
	}
	for _, llm := range want.LLMs {
		for _, have := range c.LLMs {
			if llm == have {
				return true
			}
		}
	}
	return false
}

// Signals are the upstream popularity/activity indicators feeding scoring.
type Signals struct {
	Stars             int
	Forks             int
	Watchers          int
	LastUpdated       time.Time
	ContributorCount  int
	License           string
	OpenIssueCount    int
	RecentCommitCount int
}

// SubScores holds the four scoring components, each on its own local scale.
type SubScores struct {
	Popularity    float64 // max 30
	Activity      float64 // max 25
	Documentation float64 // max 25
	Trust         float64 // max 20
}

// Skill is the indexed representation of a single discovered skill.
type Skill struct {
	Author      string
	Name        string
	ContentHash string // sha256 of the canonical skill document body

	Description   string
	Tags          []string
	Category      string
	Roles         []string // declared agent roles this skill targets, e.g. "backend", "reviewer"
	TriggerPhrases []string // phrases that invoke this skill, used for recommendation overlap checks
	UpstreamID    string // e.g. owner/repo + path
	UpstreamRev   string
	SizeBytes     int64
	Language      string
	Version       string
	Compatibility Compatibility
	RepositoryURL string

	Signals Signals

	QualityScore int // 0..100
	SubScores    SubScores
	TrustTier    TrustTier
	ScanStatus   ScanStatus
	RiskScore    float64
	LastScanAt   time.Time

	Embedding   []float32
	EmbeddingID string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	Archived   bool
	ArchivedAt time.Time
	MissedSyncs int
}

// ID returns the stable (author, name) identity string.
func (s *Skill) ID() string {
	return s.Author + "/" + s.Name
}

// Severity is a scan finding's severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Confidence is a scan finding's confidence level.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Lower reduces confidence by one step (high->medium->low->low), used when a
// match occurs inside a documentation context (fenced code block or table).
func (c Confidence) Lower() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceLow
	default:
		return ConfidenceLow
	}
}

// Category names one of the nine scanner pattern categories.
type Category string

const (
	CategoryJailbreak          Category = "jailbreak"
	CategoryAIDefence          Category = "ai_defence"
	CategoryPrivilegeEscalation Category = "privilege_escalation"
	CategoryPromptLeaking     Category = "prompt_leaking"
	CategoryDataExfiltration  Category = "data_exfiltration"
	CategorySocialEngineering Category = "social_engineering"
	CategorySuspiciousCode    Category = "suspicious_code"
	CategorySensitiveFile     Category = "sensitive_file"
	CategoryNonAllowlistedURL Category = "non_allowlisted_url"
)

// Finding is a single scanner detection.
type Finding struct {
	Category       Category
	Severity       Severity
	Confidence     Confidence
	MatchedOffset  int
	MatchedLength  int
	Excerpt        string
}

// Recommendation is the scanner's routing decision for a skill.
type Recommendation string

const (
	RecommendSafe       Recommendation = "safe"
	RecommendReview     Recommendation = "review"
	RecommendQuarantine Recommendation = "quarantine"
)

// ScanResult is the output of one scan pass over a skill's content.
type ScanResult struct {
	SkillContentHash string
	RiskScore        float64
	Findings         []Finding
	Recommendation   Recommendation
	ScannerVersion   string
	Timestamp        time.Time
}

// QuarantineStatus is the lifecycle state of a quarantine entry.
type QuarantineStatus string

const (
	QuarantinePending  QuarantineStatus = "pending"
	QuarantineApproved QuarantineStatus = "approved"
	QuarantineRejected QuarantineStatus = "rejected"
	QuarantineCanceled QuarantineStatus = "canceled"
)

// Approval records one reviewer's sign-off on a quarantine entry.
type Approval struct {
	ReviewerID string
	Timestamp  time.Time
	Note       string
}

// QuarantineEntry is a review-queue item for a potentially malicious skill.
type QuarantineEntry struct {
	ID                string
	SkillID           string
	Reason            string
	Severity          Severity
	Status            QuarantineStatus
	CreatedAt         time.Time
	RequiredApprovals int
	Approvals         []Approval
}

// IsTerminal reports whether the entry can no longer transition.
func (q *QuarantineEntry) IsTerminal() bool {
	switch q.Status {
	case QuarantineApproved, QuarantineRejected, QuarantineCanceled:
		return true
	default:
		return false
	}
}

// HasApprovalFrom reports whether reviewerID already approved this entry.
func (q *QuarantineEntry) HasApprovalFrom(reviewerID string) bool {
	for _, a := range q.Approvals {
		if a.ReviewerID == reviewerID {
			return true
		}
	}
	return false
}

// RequiredApprovalsFor returns the approvals required for a given severity
// (2 for malicious/critical, 1 otherwise).
func RequiredApprovalsFor(severity Severity) int {
	if severity == SeverityCritical {
		return 2
	}
	return 1
}

// Filters narrows a Query or a RecommendationContext candidate search.
type Filters struct {
	Category      string
	TrustTier     TrustTier
	MinScore      int
	MaxRisk       float64
	SafeOnly      bool
	Compatibility Compatibility
}

// Empty reports whether no filter field has been set.
func (f Filters) Empty() bool {
	return f.Category == "" && f.TrustTier == "" && f.MinScore == 0 &&
		f.MaxRisk == 0 && !f.SafeOnly &&
		len(f.Compatibility.IDEs) == 0 && len(f.Compatibility.LLMs) == 0
}

// Query is a search request. Limit < 0 means unset (the engine applies its
// configured default); Limit == 0 is an explicit request for zero results.
type Query struct {
	Text    string
	Filters Filters
	Limit   int
	Offset  int
}

// ResultSource identifies whether a search result came from the registry
// catalog or the user's local skill directory.
type ResultSource string

const (
	SourceRegistry ResultSource = "registry"
	SourceLocal    ResultSource = "local"
)

// SearchResult is one ranked item in a search response.
type SearchResult struct {
	SkillID       string
	Name          string
	Description   string
	Author        string
	TrustTier     TrustTier
	Score         float64
	Source        ResultSource
	InstallHint   string
	Compatibility Compatibility
	Repository    string
	Highlights    []string
}

// RecommendationContext describes the caller's project for contextual
// recommendation scoring.
type RecommendationContext struct {
	ProjectDescription string
	InstalledSkills    map[string]bool
	Role               string
	Stack              Stack
}

// Stack names the caller's project frameworks/languages/dependencies.
type Stack struct {
	Frameworks   []string
	Languages    []string
	Dependencies []string
}

// Recommendation item returned by the recommender.
type RecommendationItem struct {
	SkillID      string
	Reason       string
	QualityScore int
	Roles        []string
}
