package am

import (
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/teranos/punchclock/errors"
)

// UnknownKeys decodes a config file strictly and returns the keys that map
// to no setting, e.g. a misspelled "sync.remote_ur". Viper ignores such
// keys silently.
func UnknownKeys(path string) ([]string, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	var keys []string
	for _, k := range md.Undecoded() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys, nil
}
