// Package bundle loads the workflow definitions shipped with the system from
// a directory of JSON documents, validates them against a schema, and
// normalizes them for import: credentials and remote-managed read-only
// fields are stripped, webhook paths extracted, and a content hash computed
// as the local version.
package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prodfactory/flowsync/pkg/models"
)

// ErrDefinitionNotFound indicates no bundled definition exists for the
// requested filename.
var ErrDefinitionNotFound = errors.New("workflow definition not found in bundle")

// DefinitionError wraps a per-file loading failure with its filename.
type DefinitionError struct {
	Filename   string
	Violations []string
	Err        error
}

func (e *DefinitionError) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("invalid workflow definition %s: %s", e.Filename, strings.Join(e.Violations, "; "))
	}

	return fmt.Sprintf("failed to load workflow definition %s: %v", e.Filename, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// rawDefinition mirrors the on-disk document shape, including the read-only
// fields an n8n export carries. Only the normalized subset survives loading.
type rawDefinition struct {
	Name         string           `json:"name"`
	Nodes        []*rawNode       `json:"nodes"`
	Connections  map[string]any   `json:"connections"`
	Settings     map[string]any   `json:"settings"`
	Dependencies []string         `json:"dependencies"`
}

type rawNode struct {
	ID          string                           `json:"id"`
	Name        string                           `json:"name"`
	Type        string                           `json:"type"`
	Parameters  map[string]any                   `json:"parameters"`
	Credentials map[string]models.NodeCredential `json:"credentials"`
}

// Loader reads workflow definitions from a bundle directory. Listing order
// is lexicographic by filename so derived output is deterministic.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader over the given bundle directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	return &Loader{
		dir:    dir,
		logger: logger.With("module", "bundle"),
	}
}

// Filenames lists the bundle's workflow filenames in lexicographic order.
func (l *Loader) Filenames() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle directory %s: %w", l.dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

// Load reads, validates, and normalizes a single definition by filename.
func (l *Loader) Load(ctx context.Context, filename string) (*models.WorkflowDefinition, error) {
	raw, err := os.ReadFile(filepath.Join(l.dir, filepath.Base(filename)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, filename)
		}

		return nil, &DefinitionError{Filename: filename, Err: err}
	}

	violations, err := validateDocument(raw)
	if err != nil {
		return nil, &DefinitionError{Filename: filename, Err: err}
	}

	if len(violations) > 0 {
		return nil, &DefinitionError{Filename: filename, Violations: violations}
	}

	var doc rawDefinition
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &DefinitionError{Filename: filename, Err: err}
	}

	def := l.normalize(ctx, filename, &doc)

	return def, nil
}

// LoadAll reads every definition in the bundle, in filename order. A single
// malformed file fails the whole load: importing a partial bundle would
// leave the dependency graph inconsistent.
func (l *Loader) LoadAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	filenames, err := l.Filenames()
	if err != nil {
		return nil, err
	}

	defs := make([]*models.WorkflowDefinition, 0, len(filenames))

	for _, filename := range filenames {
		def, err := l.Load(ctx, filename)
		if err != nil {
			return nil, err
		}

		defs = append(defs, def)
	}

	return defs, nil
}

// ByName loads the whole bundle and indexes it by workflow name.
func (l *Loader) ByName(ctx context.Context) (map[string]*models.WorkflowDefinition, error) {
	defs, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*models.WorkflowDefinition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}

	return byName, nil
}

// normalize strips credentials, derives webhook paths and the content hash.
// Read-only remote fields (id, active, versionId, timestamps, tags) never
// make it past rawDefinition's field set.
func (l *Loader) normalize(ctx context.Context, filename string, doc *rawDefinition) *models.WorkflowDefinition {
	def := &models.WorkflowDefinition{
		Filename:     filename,
		Name:         doc.Name,
		Connections:  doc.Connections,
		Settings:     doc.Settings,
		Dependencies: doc.Dependencies,
		Nodes:        make([]*models.DefinitionNode, 0, len(doc.Nodes)),
	}

	for _, node := range doc.Nodes {
		if len(node.Credentials) > 0 {
			def.HasCredentials = true

			l.logger.DebugContext(ctx, "Stripped credentials from node",
				"filename", filename, "node", node.Name)
		}

		def.Nodes = append(def.Nodes, &models.DefinitionNode{
			ID:         node.ID,
			Name:       node.Name,
			Type:       node.Type,
			Parameters: node.Parameters,
		})
	}

	def.WebhookPaths = def.ExtractWebhookPaths()
	def.Version = hashDefinition(def)

	return def
}

// hashDefinition computes the content hash used as the local version. The
// hash covers the normalized definition only, so re-exports that differ in
// read-only fields hash identically.
func hashDefinition(def *models.WorkflowDefinition) string {
	hashable := struct {
		Name         string                    `json:"name"`
		Nodes        []*models.DefinitionNode  `json:"nodes"`
		Connections  map[string]any            `json:"connections"`
		Settings     map[string]any            `json:"settings"`
		Dependencies []string                  `json:"dependencies"`
	}{def.Name, def.Nodes, def.Connections, def.Settings, def.Dependencies}

	payload, err := json.Marshal(hashable)
	if err != nil {
		// Marshalling a map/struct built from parsed JSON cannot fail.
		return ""
	}

	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:])
}
