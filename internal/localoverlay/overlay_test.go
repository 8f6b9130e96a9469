package localoverlay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smith-horn/skillsmith/internal/validator"
)

const sampleSkillBody = `---
name: local-formatter
description: Formats commit messages according to team convention.
author: dev
tags: [formatting]
---

# Local Formatter

Formats commit messages.
`

func writeSkill(t *testing.T, dir, name, body string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(body), 0o644))
}

func TestLoadAllIndexesExistingSkills(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "formatter", sampleSkillBody)

	o, err := New(dir, validator.Options{})
	require.NoError(t, err)
	t.Cleanup(o.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, o.Start(ctx))

	skills := o.Skills()
	require.Len(t, skills, 1)
	assert.Equal(t, "local-formatter", skills[0].Name)
	assert.Equal(t, "dev", skills[0].Author)
}

func TestReloadPicksUpNewSkillAfterStart(t *testing.T) {
	dir := t.TempDir()

	o, err := New(dir, validator.Options{})
	require.NoError(t, err)
	t.Cleanup(o.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, o.Start(ctx))
	assert.Empty(t, o.Skills())

	writeSkill(t, dir, "formatter", sampleSkillBody)
	o.reload(filepath.Join(dir, "formatter"))

	skills := o.Skills()
	require.Len(t, skills, 1)
	assert.Equal(t, "local-formatter", skills[0].Name)
}

func TestReloadRemovesDeletedSkill(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "formatter", sampleSkillBody)

	o, err := New(dir, validator.Options{})
	require.NoError(t, err)
	t.Cleanup(o.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, o.Start(ctx))
	require.Len(t, o.Skills(), 1)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "formatter")))
	o.reload(filepath.Join(dir, "formatter"))

	assert.Empty(t, o.Skills())
}

func TestInvalidSkillFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "broken", "too short")

	o, err := New(dir, validator.Options{})
	require.NoError(t, err)
	t.Cleanup(o.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, o.Start(ctx))

	assert.Empty(t, o.Skills())
}

func TestStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	o, err := New(dir, validator.Options{})
	require.NoError(t, err)
	t.Cleanup(o.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, o.Start(ctx))
	require.NoError(t, o.Start(ctx), "starting twice must be a no-op, not an error")
}
