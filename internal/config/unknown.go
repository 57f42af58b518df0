package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each config section.
var knownKeys = map[string][]string{
	"server":  {"base_url", "documents_url", "llm_url"},
	"network": {"connect_timeout", "request_timeout", "user_agent", "max_retries"},
	"session": {"token_file", "refresh_timeout"},
	"library": {"user_id", "cache_dir", "preview_workers", "known_hosts"},
	"logging": {"log_level", "log_format"},
}

// knownSections is the sorted list of section names, for deterministic
// suggestions when two candidates have the same edit distance.
var knownSections = func() []string {
	sections := make([]string, 0, len(knownKeys))
	for s := range knownKeys {
		sections = append(sections, s)
	}

	sort.Strings(sections)

	return sections
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	// An unknown table reports once, not once per key inside it.
	reported := make(map[string]bool)

	for _, key := range md.Undecoded() {
		if _, known := knownKeys[key[0]]; !known {
			if reported[key[0]] {
				continue
			}

			reported[key[0]] = true
		}

		errs = append(errs, unknownKeyError(key))
	}

	return errors.Join(errs...)
}

// unknownKeyError describes one undecoded key. Keys inside a known section
// are matched against that section's keys; top-level keys are matched
// against section names and, failing that, every section's keys.
func unknownKeyError(key toml.Key) error {
	if len(key) >= 2 {
		if keys, ok := knownKeys[key[0]]; ok {
			return suggest(fmt.Sprintf("[%s] %s", key[0], key[1]), key[1], keys)
		}
	}

	name := key[0]
	if s := closestMatch(name, knownSections); s != "" {
		return fmt.Errorf("unknown config key %q: did you mean [%s]?", key.String(), s)
	}

	for _, section := range knownSections {
		if k := closestMatch(name, knownKeys[section]); k != "" {
			return fmt.Errorf("unknown config key %q: did you mean %q under [%s]?", key.String(), k, section)
		}
	}

	return fmt.Errorf("unknown config key %q", key.String())
}

func suggest(label, name string, candidates []string) error {
	if s := closestMatch(name, candidates); s != "" {
		return fmt.Errorf("unknown config key %s: did you mean %q?", label, s)
	}

	return fmt.Errorf("unknown config key %s", label)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
