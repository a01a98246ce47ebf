package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/config"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
)

// ErrEmpty is returned for files without any profile.
var ErrEmpty = errors.New("no alarm profiles defined")

const profilesKey = "profiles"

// Load reads and validates the profiles stored at path.
func Load(path string) ([]alarm.Profile, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	profiles, err := Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return profiles, nil
}

// Parse decodes and validates profiles from YAML in any supported layout.
func Parse(data []byte) ([]alarm.Profile, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	if len(root.Content) == 0 {
		return nil, ErrEmpty
	}

	var documents []profileDocument

	switch node := root.Content[0]; {
	case node.Kind == yaml.SequenceNode:
		if err := decodeStrict(data, &documents); err != nil {
			return nil, err
		}
	case node.Kind == yaml.MappingNode && hasKey(node, profilesKey):
		var bundle bundleDocument
		if err := decodeStrict(data, &bundle); err != nil {
			return nil, err
		}

		documents = bundle.Profiles
	case node.Kind == yaml.MappingNode:
		var single profileDocument
		if err := decodeStrict(data, &single); err != nil {
			return nil, err
		}

		documents = append(documents, single)
	default:
		return nil, fmt.Errorf("parse profiles: line %d: expected a mapping or a list", node.Line)
	}

	if len(documents) == 0 {
		return nil, ErrEmpty
	}

	profiles := make([]alarm.Profile, 0, len(documents))

	for i := range documents {
		profile, err := documents[i].toProfile()
		if err != nil {
			return nil, err
		}

		profiles = append(profiles, profile)
	}

	if err := alarm.ValidateAll(profiles); err != nil {
		return nil, err
	}

	return profiles, nil
}

// Save validates the profiles and writes them with explicit ranges under a "profiles" key.
func Save(path string, profiles []alarm.Profile) error {
	data, err := Marshal(profiles)
	if err != nil {
		return err
	}

	if err = os.WriteFile(filepath.Clean(path), data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}

	return nil
}

// Marshal renders validated profiles as YAML.
func Marshal(profiles []alarm.Profile) ([]byte, error) {
	if len(profiles) == 0 {
		return nil, ErrEmpty
	}

	if err := alarm.ValidateAll(profiles); err != nil {
		return nil, err
	}

	bundle := bundleDocument{Profiles: make([]profileDocument, 0, len(profiles))}
	for i := range profiles {
		bundle.Profiles = append(bundle.Profiles, fromProfile(&profiles[i]))
	}

	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(&bundle); err != nil {
		return nil, fmt.Errorf("marshal profiles: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("marshal profiles: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeStrict(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse profiles: %w", err)
	}

	return nil
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}

	return false
}
