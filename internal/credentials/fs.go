package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// fsSecret accepts either a bare string or a connection object with a
// password field, so that exported connection files can be used as-is.
type fsSecret struct {
	Password string `json:"password" yaml:"password"`
}

func (s *fsSecret) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.Password = plain
		return nil
	}
	type conn fsSecret
	var c conn
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*s = fsSecret(c)
	return nil
}

func (s *fsSecret) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Password = node.Value
		return nil
	}
	type conn fsSecret
	var c conn
	if err := node.Decode(&c); err != nil {
		return err
	}
	*s = fsSecret(c)
	return nil
}

// FileStore reads secrets from a YAML or JSON file mapping names to values.
// Files ending in .json are parsed as JSON, everything else as YAML.
type FileStore struct {
	Path string

	mu sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) isJSON() bool {
	return strings.EqualFold(filepath.Ext(f.Path), ".json")
}

func (f *FileStore) read() (map[string]fsSecret, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	secrets := map[string]fsSecret{}
	if f.isJSON() {
		err = json.Unmarshal(b, &secrets)
	} else {
		err = yaml.Unmarshal(b, &secrets)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}
	return secrets, nil
}

// GetSecret reads the file on every call and returns the value for name
func (f *FileStore) GetSecret(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secrets, err := f.read()
	if err != nil {
		return "", err
	}
	s, ok := secrets[name]
	if !ok || s.Password == "" {
		return "", notFound(name)
	}
	return s.Password, nil
}

// SetSecret writes name=value into the file, creating it and its parent
// directory when missing. Other entries are preserved as plain values.
func (f *FileStore) SetSecret(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	secrets, err := f.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		secrets = map[string]fsSecret{}
	}
	secrets[name] = fsSecret{Password: value}

	flat := make(map[string]string, len(secrets))
	for k, v := range secrets {
		flat[k] = v.Password
	}

	var data []byte
	if f.isJSON() {
		data, err = json.MarshalIndent(flat, "", "  ")
	} else {
		data, err = marshalSortedYAML(flat)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	if err := EnsureParentDir(f.Path); err != nil {
		return err
	}
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

func marshalSortedYAML(m map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: m[k], Style: yaml.DoubleQuotedStyle},
		)
	}
	return yaml.Marshal(doc)
}
