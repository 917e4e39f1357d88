// Package file provides file-based persistence for workflows, workflow runs
// and node runs. Records are stored as one JSON document per file. A single
// store-level mutex serializes every mutation, which gives the conditional
// lock update the same compare-and-set behavior a SQL backend provides.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	mu           sync.Mutex
	workflowRepo *WorkflowRepository
	runRepo      *WorkflowRunRepository
	nodeRunRepo  *NodeRunRepository
}

// NewPersistence creates a new instance of Persistence rooted at the given directory.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	err := os.MkdirAll(cleanRoot, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence root: %w", err)
	}

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{store: p}
	p.runRepo = &WorkflowRunRepository{store: p}
	p.nodeRunRepo = &NodeRunRepository{store: p}

	return p, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) WorkflowRunRepository() persistence.WorkflowRunRepository {
	return p.runRepo
}

func (p *Persistence) NodeRunRepository() persistence.NodeRunRepository {
	return p.nodeRunRepo
}

// Close performs any necessary cleanup. For file-based persistence there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists or can be created.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return os.MkdirAll(p.root, 0o755)
}

func (p *Persistence) dir(kind string) string {
	return filepath.Join(p.root, kind)
}

func (p *Persistence) path(kind, id string) string {
	return filepath.Join(p.root, kind, id+".json")
}

// read decodes a single record file into out. Callers must hold p.mu.
func (p *Persistence) read(kind, id string, out any) error {
	data, err := os.ReadFile(p.path(kind, id))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}

// write encodes a single record file. Callers must hold p.mu.
func (p *Persistence) write(kind, id string, record any) error {
	err := os.MkdirAll(p.dir(kind), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", kind, err)
	}

	err = os.WriteFile(p.path(kind, id), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s record: %w", kind, err)
	}

	return nil
}

// list returns the ids of every record of the given kind. Callers must hold p.mu.
func (p *Persistence) list(kind string) ([]string, error) {
	entries, err := os.ReadDir(p.dir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s directory: %w", kind, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
