package ingest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// WithAliases returns a copy of t with extra aliases appended after the
// built-in ones of each field. Keys must be canonical names of t.
func (t AliasTable) WithAliases(extra map[string][]string) (AliasTable, error) {
	index := make(map[string]int, len(t))
	out := make(AliasTable, len(t))
	for i, f := range t {
		index[f.Canonical] = i
		out[i] = FieldAliases{Canonical: f.Canonical, Aliases: append([]string(nil), f.Aliases...)}
	}

	var unknown []string
	for canonical, aliases := range extra {
		i, ok := index[canonical]
		if !ok {
			unknown = append(unknown, canonical)
			continue
		}
		for _, alias := range aliases {
			alias = strings.TrimSpace(alias)
			if alias == "" || containsString(out[i].Aliases, alias) {
				continue
			}
			out[i].Aliases = append(out[i].Aliases, alias)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown canonical columns in alias file: %s (expected one of %s)",
			strings.Join(unknown, ", "), strings.Join(t.Canonicals(), ", "))
	}

	return out, nil
}

// ParseAliases reads a YAML mapping of canonical column to extra header names:
//
//	店铺: [门店名称, Store Name]
//	本月滞销: [current_stale]
func ParseAliases(data []byte) (map[string][]string, error) {
	extra := map[string][]string{}
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse alias yaml: %w", err)
	}
	return extra, nil
}

// LoadAliasFile extends DefaultAliasTable with the aliases declared in path.
func LoadAliasFile(path string) (AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	extra, err := ParseAliases(data)
	if err != nil {
		return nil, err
	}
	return DefaultAliasTable.WithAliases(extra)
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
