package bank

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Registry is the read-only catalogue of supported institutions. It is built
// once at startup and is safe for concurrent use without locking.
type Registry struct {
	profiles []Profile
	byName   map[string]int

	// matcher finds every fingerprint in one pass. owners maps a matcher
	// pattern index to the profiles declaring that fingerprint.
	matcher  *ahocorasick.Matcher
	patterns []string
	owners   [][]int
}

// NewRegistry compiles and indexes profiles. Registration order decides which
// profile wins when more than one matches.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{
		profiles: make([]Profile, 0, len(profiles)),
		byName:   make(map[string]int, len(profiles)),
	}

	patternIndex := make(map[string]int)
	for _, p := range profiles {
		p.Fingerprints = slices.Clone(p.Fingerprints)
		p.Credentials = slices.Clone(p.Credentials)
		p.Formats = slices.Clone(p.Formats)
		if err := p.validate(); err != nil {
			return nil, err
		}

		key := strings.ToLower(p.Name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("%w: duplicate profile %s", models.ErrInvalidFormat, p.Name)
		}
		idx := len(r.profiles)
		r.byName[key] = idx
		r.profiles = append(r.profiles, p)

		for _, fp := range p.Fingerprints {
			pattern := strings.ToLower(strings.TrimSpace(fp))
			if pattern == "" {
				return nil, fmt.Errorf("%w: profile %s has a blank fingerprint", models.ErrInvalidFormat, p.Name)
			}
			pi, ok := patternIndex[pattern]
			if !ok {
				pi = len(r.patterns)
				patternIndex[pattern] = pi
				r.patterns = append(r.patterns, pattern)
				r.owners = append(r.owners, nil)
			}
			if !slices.Contains(r.owners[pi], idx) {
				r.owners[pi] = append(r.owners[pi], idx)
			}
		}
	}

	if len(r.patterns) > 0 {
		r.matcher = ahocorasick.NewStringMatcher(r.patterns)
	}
	return r, nil
}

// Identify returns the first profile whose fingerprints all occur in text,
// compared case-insensitively. More than one matching profile means the
// declarations overlap; that is logged and, in development builds, panics.
func (r *Registry) Identify(text string) (Profile, bool) {
	matched := r.matchingProfiles(text)
	if len(matched) == 0 {
		return Profile{}, false
	}
	if len(matched) > 1 {
		names := make([]string, len(matched))
		for i, idx := range matched {
			names[i] = r.profiles[idx].Name
		}
		slog.Error("ambiguous institution fingerprints", "profiles", names)
		if strictIdentify {
			panic(fmt.Sprintf("bank: fingerprints of %s all match the same text", strings.Join(names, ", ")))
		}
	}
	return r.profiles[matched[0]], true
}

// matchingProfiles returns the indices of fully matched profiles in
// registration order.
func (r *Registry) matchingProfiles(text string) []int {
	if r.matcher == nil {
		return nil
	}
	hits := make(map[int]int)
	seen := make(map[int]bool)
	for _, pi := range r.matcher.MatchThreadSafe([]byte(strings.ToLower(text))) {
		if seen[pi] {
			continue
		}
		seen[pi] = true
		for _, owner := range r.owners[pi] {
			hits[owner]++
		}
	}

	var matched []int
	for idx, p := range r.profiles {
		if hits[idx] == distinctFingerprints(p) {
			matched = append(matched, idx)
		}
	}
	return matched
}

func distinctFingerprints(p Profile) int {
	seen := make(map[string]struct{}, len(p.Fingerprints))
	for _, fp := range p.Fingerprints {
		seen[strings.ToLower(strings.TrimSpace(fp))] = struct{}{}
	}
	return len(seen)
}

// Lookup returns the profile registered under name, ignoring case.
func (r *Registry) Lookup(name string) (Profile, bool) {
	idx, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, false
	}
	return r.profiles[idx], true
}

// Profiles returns every registered profile in registration order.
func (r *Registry) Profiles() []Profile {
	return slices.Clone(r.profiles)
}

// ProbePages returns the distinct probe pages declared by the profiles, in
// registration order.
func (r *Registry) ProbePages() []int {
	var pages []int
	for _, p := range r.profiles {
		if !slices.Contains(pages, p.ProbePage) {
			pages = append(pages, p.ProbePage)
		}
	}
	return pages
}

// Credentials returns the credentials of every profile, in registration order.
// They are tried when a document must be opened before its institution is known.
func (r *Registry) Credentials() []models.Credential {
	var creds []models.Credential
	for _, p := range r.profiles {
		creds = append(creds, p.Credentials...)
	}
	return creds
}
