package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/subosito/gotenv"
)

// ApplyEnvFile loads path into the process environment. Variables that are
// already set are left untouched. A missing file is an error only when required.
// It returns the keys it set, sorted.
func ApplyEnvFile(path string, required bool) ([]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	env, err := gotenv.Read(filepath.Clean(path))
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var set []string
	for _, k := range keys {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, env[k]); err != nil {
			return set, err
		}
		set = append(set, k)
	}
	return set, nil
}
