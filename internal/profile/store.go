package profile

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
)

// profilesFile is the on-disk YAML document shape.
type profilesFile struct {
	Profiles    map[string]*Profile     `yaml:"profiles"`
	GlobalRules map[string][]CustomRule `yaml:"globalSchematronRules,omitempty"`
}

// snapshot is the compiled profile state, swapped atomically on reload so
// readers never observe a half-loaded set.
type snapshot struct {
	profiles    map[string]*Profile
	resolved    map[string]*Resolved
	globalRules map[string][]CustomRule
}

// Store loads profiles from the Asset Store, resolves inheritance eagerly,
// and exposes the flattened results. Edits rewrite the YAML file and
// rebuild the snapshot.
type Store struct {
	store *assets.Store
	log   *zap.Logger

	mu   sync.Mutex // serializes edits
	snap sync.Map   // singleton key "" -> *snapshot
}

// NewStore creates a profile store backed by the asset store. Call Reload
// before first use.
func NewStore(store *assets.Store, log *zap.Logger) *Store {
	s := &Store{store: store, log: log.Named("profiles")}
	s.snap.Store("", &snapshot{
		profiles:    map[string]*Profile{},
		resolved:    map[string]*Resolved{},
		globalRules: map[string][]CustomRule{},
	})
	return s
}

func (s *Store) current() *snapshot {
	v, _ := s.snap.Load("")
	return v.(*snapshot)
}

// ── Reloadable ──────────────────────────────────────────────────────

// Name implements assets.Reloadable.
func (s *Store) Name() string { return "Validation Profiles" }

// Kind implements assets.Reloadable.
func (s *Store) Kind() model.AssetKind { return model.KindProfile }

// Reload re-reads the profile file and rebuilds the resolved snapshot.
// Individual bad profiles are reported and skipped; the rest still load.
func (s *Store) Reload() model.ReloadResult {
	start := time.Now()
	res := model.ReloadResult{Component: s.Name()}

	file, err := s.load()
	if err != nil {
		res.Status = model.ReloadFailed
		res.Errors = []string{err.Error()}
		res.DurationMs = time.Since(start).Milliseconds()
		return res
	}

	next := &snapshot{
		profiles:    file.Profiles,
		resolved:    make(map[string]*Resolved, len(file.Profiles)),
		globalRules: file.GlobalRules,
	}
	if next.profiles == nil {
		next.profiles = map[string]*Profile{}
	}
	if next.globalRules == nil {
		next.globalRules = map[string][]CustomRule{}
	}

	for name := range next.profiles {
		r, err := resolve(name, next.profiles)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		next.resolved[name] = r
	}

	s.snap.Store("", next)

	res.Loaded = len(next.resolved)
	res.DurationMs = time.Since(start).Milliseconds()
	switch {
	case len(res.Errors) == 0:
		res.Status = model.ReloadOK
	case res.Loaded > 0:
		res.Status = model.ReloadPartial
	default:
		res.Status = model.ReloadFailed
	}
	return res
}

func (s *Store) load() (*profilesFile, error) {
	var file profilesFile
	if !s.store.Exists(assets.ProfilesFile) {
		return &file, nil
	}
	data, err := s.store.Read(assets.ProfilesFile)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", assets.ProfilesFile, err)
	}
	for name, p := range file.Profiles {
		if p == nil {
			p = &Profile{}
			file.Profiles[name] = p
		}
		p.Name = name
	}
	return &file, nil
}

func (s *Store) save(file *profilesFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	return s.store.Write(assets.ProfilesFile, data)
}

// ── Resolution ──────────────────────────────────────────────────────

// resolve flattens a profile by walking its extends chain leaf to root.
// A repeated name along the walk is a cycle and fails fast.
func resolve(name string, all map[string]*Profile) (*Resolved, error) {
	var chain []*Profile
	visited := map[string]bool{}

	for cur := name; cur != ""; {
		if visited[cur] {
			return nil, model.NewProfileError(name, fmt.Sprintf("inheritance cycle through %q", cur), nil)
		}
		visited[cur] = true

		p, ok := all[cur]
		if !ok {
			return nil, model.NewProfileError(name, fmt.Sprintf("extends unknown profile %q", cur), nil)
		}
		chain = append(chain, p)
		cur = p.Extends
	}

	// Ancestor rules first, own rules appended: child rules never replace
	// ancestor rules, all sets are unions.
	out := &Resolved{
		Name:            name,
		XsdOverrides:    map[string][]XsdOverride{},
		SchematronRules: map[string][]CustomRule{},
	}
	var suppressions []SuppressionRule
	for i := len(chain) - 1; i >= 0; i-- {
		p := chain[i]
		suppressions = append(suppressions, p.Suppressions...)
		for k, v := range p.XsdOverrides {
			out.XsdOverrides[k] = append(out.XsdOverrides[k], v...)
		}
		for k, v := range p.SchematronRules {
			out.SchematronRules[k] = append(out.SchematronRules[k], v...)
		}
	}

	compiled, err := CompileRules(suppressions)
	if err != nil {
		return nil, model.NewProfileError(name, "suppression rule compile failed", err)
	}
	out.Suppressions = compiled
	return out, nil
}

// ── Queries ─────────────────────────────────────────────────────────

// Resolve returns the flattened profile for name, or the empty identity
// when name is blank. Unknown names fail with ErrNotFound.
func (s *Store) Resolve(name string) (*Resolved, error) {
	if name == "" {
		return Empty, nil
	}
	snap := s.current()
	if r, ok := snap.resolved[name]; ok {
		return r, nil
	}
	if _, ok := snap.profiles[name]; ok {
		// Present but failed to resolve on load.
		return nil, model.NewProfileError(name, "profile failed to load; check reload errors", nil)
	}
	return nil, fmt.Errorf("profile %q: %w", name, model.ErrNotFound)
}

// Get returns the raw (unflattened) profile definition.
func (s *Store) Get(name string) (*Profile, error) {
	if p, ok := s.current().profiles[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("profile %q: %w", name, model.ErrNotFound)
}

// List returns all profile definitions sorted by name.
func (s *Store) List() []*Profile {
	snap := s.current()
	out := make([]*Profile, 0, len(snap.profiles))
	for _, p := range snap.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GlobalRules returns the process-wide custom Schematron rules by rule-set
// type name. These apply to every validation regardless of profile.
func (s *Store) GlobalRules() map[string][]CustomRule {
	return s.current().globalRules
}

// ── Edits ───────────────────────────────────────────────────────────

// Save creates or replaces a profile and persists the file. The saved
// profile must resolve: cycles and bad patterns are rejected up front.
func (s *Store) Save(p *Profile) error {
	if p.Name == "" {
		return model.NewProfileError("", "profile name required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	if file.Profiles == nil {
		file.Profiles = map[string]*Profile{}
	}
	file.Profiles[p.Name] = p

	if _, err := resolve(p.Name, file.Profiles); err != nil {
		return err
	}
	for _, overrides := range p.XsdOverrides {
		for _, o := range overrides {
			if err := o.Validate(); err != nil {
				return model.NewProfileError(p.Name, "invalid xsd override", err)
			}
		}
	}

	if err := s.save(file); err != nil {
		return err
	}
	s.Reload()
	s.log.Info("profile saved", zap.String("name", p.Name))
	return nil
}

// Delete removes a profile. Profiles extended by another profile cannot be
// deleted; that would orphan the child.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.Profiles[name]; !ok {
		return fmt.Errorf("profile %q: %w", name, model.ErrNotFound)
	}
	for other, p := range file.Profiles {
		if other != name && p.Extends == name {
			return fmt.Errorf("profile %q is extended by %q: %w", name, other, model.ErrConflict)
		}
	}
	delete(file.Profiles, name)

	if err := s.save(file); err != nil {
		return err
	}
	s.Reload()
	s.log.Info("profile deleted", zap.String("name", name))
	return nil
}

// SaveGlobalRules replaces the process-wide custom rules.
func (s *Store) SaveGlobalRules(rules map[string][]CustomRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	file.GlobalRules = rules
	if err := s.save(file); err != nil {
		return err
	}
	s.Reload()
	return nil
}
