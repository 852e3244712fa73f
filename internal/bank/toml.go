package bank

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// declarations is the layout of a bank declarations file:
//
//	[[bank]]
//	name = "Example Bank"
//	fingerprints = ["Example Bank plc"]
//	currency = "GBP"
//
//	[[bank.formats]]
//	kind = "debit"
//	statement_date_pattern = 'Statement date (?P<date>\d{2}/\d{2}/\d{4})'
//	...
type declarations struct {
	Bank []Profile `toml:"bank"`
}

// LoadFile reads profiles from a TOML declarations file.
func LoadFile(path string) ([]Profile, error) {
	var d declarations
	md, err := toml.DecodeFile(path, &d)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrInvalidFormat, path, err)
	}
	return checkDecoded(path, d, md)
}

// Load reads profiles from TOML declarations in r.
func Load(r io.Reader) ([]Profile, error) {
	var d declarations
	md, err := toml.NewDecoder(r).Decode(&d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidFormat, err)
	}
	return checkDecoded("declarations", d, md)
}

func checkDecoded(source string, d declarations, md toml.MetaData) ([]Profile, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s: unknown keys %s", models.ErrInvalidFormat, source, strings.Join(keys, ", "))
	}
	return d.Bank, nil
}

// Merge overlays profiles onto base. A profile whose name matches one in base,
// ignoring case, replaces it in place; the rest are appended in order.
func Merge(base, overlay []Profile) []Profile {
	merged := slices.Clone(base)
	for _, p := range overlay {
		i := slices.IndexFunc(merged, func(b Profile) bool { return strings.EqualFold(b.Name, p.Name) })
		if i >= 0 {
			merged[i] = p
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// WithCredentials appends credentials to the named profiles. Names are matched
// ignoring case; unknown names are returned so callers can report them.
func WithCredentials(profiles []Profile, creds map[string][]models.Credential) ([]Profile, []string) {
	out := slices.Clone(profiles)
	var unknown []string
	for name, list := range creds {
		i := slices.IndexFunc(out, func(p Profile) bool { return strings.EqualFold(p.Name, name) })
		if i < 0 {
			unknown = append(unknown, name)
			continue
		}
		out[i].Credentials = append(slices.Clone(out[i].Credentials), list...)
	}
	slices.Sort(unknown)
	return out, unknown
}
