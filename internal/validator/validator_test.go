package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func padBody(body string) string {
	if len(body) >= 100 {
		return body
	}
	return body + "\n" + strings.Repeat("filler ", (100-len(body))/7+1)
}

func TestValidateRejectsEmptyContent(t *testing.T) {
	_, err := Validate([]byte("   \n\t  "), Options{})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "non_empty", verr.Rule)
}

func TestValidateRejectsBelowMinLength(t *testing.T) {
	_, err := Validate([]byte("# Short\nshort"), Options{MinContentLength: 100})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "min_length", verr.Rule)
}

func TestValidateRequiresTopLevelHeading(t *testing.T) {
	body := padBody("## Only a sub-heading here, no top-level heading at all in this document")
	_, err := Validate([]byte(body), Options{MinContentLength: 10})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "top_level_heading", verr.Rule)
}

func TestValidateWithoutFrontmatterAppliesFallbacks(t *testing.T) {
	body := padBody("# My Skill\nThis is the body content of the skill describing what it does.")
	result, err := Validate([]byte(body), Options{MinContentLength: 10, RepositoryOwner: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "My Skill", result.Name)
	assert.Equal(t, "acme", result.Author)
	assert.Equal(t, "My Skill", result.Description)
	assert.False(t, result.HasFrontmatter)
	assert.ElementsMatch(t, []string{"author", "description"}, result.Repaired)
}

func TestValidateWithFrontmatterRequiresName(t *testing.T) {
	doc := padBody("---\ndescription: this description is definitely long enough\n---\n# Heading\nBody text here.")
	_, err := Validate([]byte(doc), Options{MinContentLength: 10})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "frontmatter_name", verr.Rule)
}

func TestValidateWithFrontmatterShortDescriptionRejected(t *testing.T) {
	doc := padBody("---\nname: thing\ndescription: too short\n---\n# Heading\nBody text here that is long enough to pass.")
	_, err := Validate([]byte(doc), Options{MinContentLength: 10})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "frontmatter_description_length", verr.Rule)
}

func TestValidateWithCompleteFrontmatter(t *testing.T) {
	doc := padBody("---\nname: my-skill\ndescription: a sufficiently long description of the skill\nauthor: jane\ntags: [a, b]\n---\n# My Skill\nBody content describing the skill in detail.")
	result, err := Validate([]byte(doc), Options{MinContentLength: 10})
	require.NoError(t, err)
	assert.Equal(t, "my-skill", result.Name)
	assert.Equal(t, "jane", result.Author)
	assert.Empty(t, result.Repaired)
	assert.Equal(t, []string{"a", "b"}, result.Tags)
}

func TestValidateStrictModeRejectsMissingFrontmatter(t *testing.T) {
	body := padBody("# My Skill\nThis is the body content describing the skill without any frontmatter at all.")
	_, err := Validate([]byte(body), Options{MinContentLength: 10, Strict: true})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "frontmatter_required", verr.Rule)
}

func TestValidateStrictModeRejectsMissingAuthorFallback(t *testing.T) {
	doc := padBody("---\nname: my-skill\ndescription: a sufficiently long description of the skill\n---\n# My Skill\nBody content.")
	_, err := Validate([]byte(doc), Options{MinContentLength: 10, Strict: true})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "author_required", verr.Rule)
}

func TestValidateAcceptsContentAtExactlyMaxContentBytes(t *testing.T) {
	body := []byte(padBody("# My Skill\nBody content describing the skill in enough detail to pass."))
	_, err := Validate(body, Options{MinContentLength: 10, MaxContentBytes: int64(len(body))})
	require.NoError(t, err)
}

func TestValidateRejectsContentOneByteOverMaxContentBytes(t *testing.T) {
	body := []byte(padBody("# My Skill\nBody content describing the skill in enough detail to pass."))
	_, err := Validate(body, Options{MinContentLength: 10, MaxContentBytes: int64(len(body)) - 1})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "max_content_bytes", verr.Rule)
}

func TestValidateUnclosedFrontmatterFenceIsParseError(t *testing.T) {
	doc := padBody("---\nname: my-skill\n# My Skill\nBody content without closing fence.")
	_, err := Validate([]byte(doc), Options{MinContentLength: 10})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "frontmatter_parse", verr.Rule)
}
