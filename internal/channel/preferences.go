package channel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadPreferences reads a category preference map from a YAML or JSON file.
// The format is chosen by extension; anything other than .json is parsed as
// YAML.
func LoadPreferences(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "channel: read preferences %s", path)
	}

	prefs := make(Preferences)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &prefs)
	} else {
		err = yaml.Unmarshal(data, &prefs)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "channel: parse preferences %s", path)
	}

	return prefs.Normalize(), nil
}
