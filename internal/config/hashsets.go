package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HashSet is a named set of 40-character hex measurement digests, the
// "trusted set" referenced by a MeasurementList criterion's "trusted" option.
type HashSet map[string]struct{}

// Contains reports whether digest is a member of the set.
func (s HashSet) Contains(digest string) bool {
	_, ok := s[digest]
	return ok
}

// HashSets is the parsed contents of the hash-sets file (cfg/hashes.cfg in
// the original project): a name -> HashSet lookup table, loaded once at
// daemon startup, handed to every MeasurementList, and never mutated
// afterward.
type HashSets map[string]HashSet

type hashSetsDocument struct {
	Sets map[string]string `yaml:"sets"` // set name -> path to a digest-list file
}

// LoadHashSets reads the hash-sets document at path and every digest-list
// file it references, one digest per line.
func LoadHashSets(path string) (HashSets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hash sets %s: %w", path, err)
	}

	var doc hashSetsDocument
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &doc); err != nil {
		return nil, fmt.Errorf("parse hash sets %s: %w", path, err)
	}

	sets := make(HashSets, len(doc.Sets))
	for name, setPath := range doc.Sets {
		set, err := loadDigestFile(setPath)
		if err != nil {
			return nil, fmt.Errorf("load hash set %q: %w", name, err)
		}
		sets[name] = set
	}
	return sets, nil
}

func loadDigestFile(path string) (HashSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	set := HashSet{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		digest := strings.TrimSpace(scanner.Text())
		if digest == "" {
			continue
		}
		set[digest] = struct{}{}
	}
	return set, scanner.Err()
}
