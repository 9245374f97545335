// Package catalog loads the creature and scenario tables from disk.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jason-s-yu/skirmish/engine"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrEmptyCatalog is returned when a file defines neither creatures nor
// scenarios.
var ErrEmptyCatalog = errors.New("catalog: no creatures or scenarios")

// Loader reads catalog files.
type Loader struct {
	log *logrus.Entry
}

// NewLoader returns a loader that logs through l.
func NewLoader(l logrus.FieldLogger) *Loader {
	return &Loader{log: l.WithField("component", "catalog")}
}

// Load reads a .json, .yaml or .yml catalog. Missing or invalid sections
// fall back to the built-in tables individually. The returned catalog is
// always usable; a non-nil error says the file could not be used in full.
func (l *Loader) Load(path string) (engine.Catalog, error) {
	if path == "" {
		return engine.DefaultCatalog(), nil
	}
	log := l.log.WithField("path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warn("using built-in catalog")
		return engine.DefaultCatalog(), fmt.Errorf("read catalog: %w", err)
	}

	var cat engine.Catalog
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cat)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cat)
	default:
		err = fmt.Errorf("unsupported extension %q", ext)
	}
	if err != nil {
		log.WithError(err).Warn("using built-in catalog")
		return engine.DefaultCatalog(), fmt.Errorf("decode catalog %s: %w", path, err)
	}

	cat.Creatures = l.validCreatures(log, cat.Creatures)
	cat.Scenarios = l.validScenarios(log, cat.Scenarios)
	if len(cat.Creatures) == 0 && len(cat.Scenarios) == 0 {
		log.Warn("catalog is empty, using built-in catalog")
		return engine.DefaultCatalog(), fmt.Errorf("%s: %w", path, ErrEmptyCatalog)
	}
	if len(cat.Creatures) == 0 {
		log.Warn("no creatures defined, using built-in creatures")
	}
	if len(cat.Scenarios) == 0 {
		log.Warn("no scenarios defined, using built-in scenarios")
	}
	return cat.WithDefaults(), nil
}

func (l *Loader) validCreatures(log *logrus.Entry, in []engine.Creature) []engine.Creature {
	out := in[:0]
	for _, c := range in {
		if c.Name == "" || c.HP <= 0 {
			log.WithField("creature", c.ID).Warn("skipping creature without name or hp")
			continue
		}
		out = append(out, c)
	}
	return out
}

func (l *Loader) validScenarios(log *logrus.Entry, in []engine.ScenarioCard) []engine.ScenarioCard {
	out := in[:0]
	for _, s := range in {
		if s.Weight <= 0 {
			log.WithField("scenario", s.ID).Warn("skipping scenario without positive weight")
			continue
		}
		if s.Effect != engine.ScenarioThreat && s.Effect != engine.ScenarioNoThreat {
			log.WithFields(logrus.Fields{"scenario": s.ID, "effect": s.Effect}).Warn("skipping scenario with unknown effect")
			continue
		}
		out = append(out, s)
	}
	return out
}

// Encode writes cat in the format implied by ext (".json", ".yaml", ".yml").
func Encode(cat engine.Catalog, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return json.MarshalIndent(cat, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(cat)
	}
	return nil, fmt.Errorf("unsupported extension %q", ext)
}
