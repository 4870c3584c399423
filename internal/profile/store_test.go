package profile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
)

func newTestStore(t *testing.T, yml string) *profile.Store {
	t.Helper()
	store, err := assets.NewStore(t.TempDir())
	require.NoError(t, err)
	if yml != "" {
		require.NoError(t, store.Write(assets.ProfilesFile, []byte(yml)))
	}
	s := profile.NewStore(store, zap.NewNop())
	s.Reload()
	return s
}

func TestResolveEmptyNameIsIdentity(t *testing.T) {
	s := newTestStore(t, "")

	r, err := s.Resolve("")
	require.NoError(t, err)
	assert.Same(t, profile.Empty, r)
	assert.Empty(t, r.Suppressions)
}

func TestResolveUnknownProfile(t *testing.T) {
	s := newTestStore(t, "")

	_, err := s.Resolve("ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestResolveInheritanceUnion(t *testing.T) {
	s := newTestStore(t, `
profiles:
  base:
    suppressions:
      - match: ruleIdEquals
        pattern: GIB-001
  child:
    extends: base
    suppressions:
      - match: ruleIdEquals
        pattern: GIB-002
`)

	r, err := s.Resolve("child")
	require.NoError(t, err)
	require.Len(t, r.Suppressions, 2)

	// Ancestor rules come first.
	assert.Equal(t, "GIB-001", r.Suppressions[0].Rule.Pattern)
	assert.Equal(t, "GIB-002", r.Suppressions[1].Rule.Pattern)

	// The parent resolves independently with only its own rule.
	base, err := s.Resolve("base")
	require.NoError(t, err)
	assert.Len(t, base.Suppressions, 1)
}

func TestResolveCycleFails(t *testing.T) {
	s := newTestStore(t, `
profiles:
  a:
    extends: b
  b:
    extends: a
`)

	_, err := s.Resolve("a")
	require.Error(t, err)

	var profErr *model.ProfileError
	require.True(t, errors.As(err, &profErr))
	assert.Contains(t, profErr.Error(), "cycle")
}

func TestSaveRejectsCycle(t *testing.T) {
	s := newTestStore(t, `
profiles:
  base:
    description: parent
`)

	err := s.Save(&profile.Profile{Name: "base", Extends: "base"})
	require.Error(t, err)

	var profErr *model.ProfileError
	assert.True(t, errors.As(err, &profErr))
}

func TestSaveAndDelete(t *testing.T) {
	s := newTestStore(t, "")

	require.NoError(t, s.Save(&profile.Profile{
		Name: "acme",
		Suppressions: []profile.SuppressionRule{
			{Match: profile.MatchRuleID, Pattern: "^GIB-"},
		},
	}))

	got, err := s.Get("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)

	r, err := s.Resolve("acme")
	require.NoError(t, err)
	assert.Len(t, r.Suppressions, 1)

	require.NoError(t, s.Delete("acme"))
	_, err = s.Resolve("acme")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteExtendedProfileConflicts(t *testing.T) {
	s := newTestStore(t, `
profiles:
  base:
    description: parent
  child:
    extends: base
`)

	err := s.Delete("base")
	assert.ErrorIs(t, err, model.ErrConflict)

	// Removing the child first unblocks the parent.
	require.NoError(t, s.Delete("child"))
	require.NoError(t, s.Delete("base"))
}

func TestGlobalRulesRoundTrip(t *testing.T) {
	s := newTestStore(t, "")

	rules := map[string][]profile.CustomRule{
		"UBLTR_MAIN": {
			{ID: "ORG-1", Context: "//Invoice", Test: "count(ID) = 1", Message: "exactly one ID"},
		},
	}
	require.NoError(t, s.SaveGlobalRules(rules))

	got := s.GlobalRules()
	require.Len(t, got["UBLTR_MAIN"], 1)
	assert.Equal(t, "ORG-1", got["UBLTR_MAIN"][0].ID)
}

func TestReloadSkipsBadProfile(t *testing.T) {
	s := newTestStore(t, `
profiles:
  good:
    suppressions:
      - match: ruleIdEquals
        pattern: GIB-001
  bad:
    extends: missing
`)

	res := s.Reload()
	assert.Equal(t, model.ReloadPartial, res.Status)
	assert.Equal(t, 1, res.Loaded)
	require.Len(t, res.Errors, 1)

	_, err := s.Resolve("good")
	assert.NoError(t, err)
	_, err = s.Resolve("bad")
	assert.Error(t, err)
}
