package workflow

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/stagehand-dev/stagehand/internal/fault"
)

//go:embed schema.cue
var schemaCUE string

// Provider resolves a workflow id to its validated definition.
type Provider interface {
	Load(workflowID string) (*Definition, error)
}

// DirProvider loads definitions from <dir>/<workflowID>.json.
type DirProvider struct {
	dir    string
	cuectx *cue.Context
	schema cue.Value
}

// NewDirProvider creates a provider rooted at dir. The embedded schema is
// compiled once up front; a broken schema is a programming error and panics.
func NewDirProvider(dir string) *DirProvider {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		panic(fmt.Sprintf("workflow: embedded schema does not compile: %v", err))
	}
	return &DirProvider{
		dir:    dir,
		cuectx: ctx,
		schema: schema.LookupPath(cue.ParsePath("#Definition")),
	}
}

// Path returns the definition file path for a workflow id.
func (p *DirProvider) Path(workflowID string) string {
	return filepath.Join(p.dir, workflowID+".json")
}

// Load reads, validates, and decodes one definition.
// Returns a NOT_FOUND fault when no definition file exists and a
// VALIDATION fault when the file does not satisfy the schema.
func (p *DirProvider) Load(workflowID string) (*Definition, error) {
	path := p.Path(workflowID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fault.NotFound("workflow not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", workflowID, err)
	}

	if err := p.validate(path, data); err != nil {
		return nil, err
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fault.Validation("workflow %s: decode: %v", workflowID, err)
	}
	if def.ID == "" {
		def.ID = workflowID
	}
	return &def, nil
}

// validate unifies the raw JSON with the closed #Definition schema.
func (p *DirProvider) validate(path string, data []byte) error {
	expr, err := cuejson.Extract(path, data)
	if err != nil {
		return fault.Validation("workflow definition %s is not valid JSON: %v", path, err)
	}

	value := p.cuectx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return fault.Validation("workflow definition %s: %v", path, err)
	}

	unified := p.schema.Unify(value)
	if err := unified.Validate(cue.Final()); err != nil {
		return fault.Validation("workflow definition %s: %s", path, cueerrors.Details(err, nil))
	}
	return nil
}

// Save writes a definition back to its file with stable 2-space indent.
// Used by the feedback loop when auto-applying improvements.
func (p *DirProvider) Save(workflowID string, def *Definition) error {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("save workflow %s: marshal: %w", workflowID, err)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("save workflow %s: %w", workflowID, err)
	}
	if err := os.WriteFile(p.Path(workflowID), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save workflow %s: %w", workflowID, err)
	}
	return nil
}

// Backup copies the current definition file into <dir>/.backups before a
// mutation. Returns the backup path.
func (p *DirProvider) Backup(workflowID string, now time.Time) (string, error) {
	data, err := os.ReadFile(p.Path(workflowID))
	if os.IsNotExist(err) {
		return "", fault.NotFound("workflow not found: %s", p.Path(workflowID))
	}
	if err != nil {
		return "", fmt.Errorf("backup workflow %s: %w", workflowID, err)
	}

	backupDir := filepath.Join(p.dir, ".backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("backup workflow %s: %w", workflowID, err)
	}
	backupPath := filepath.Join(backupDir, fmt.Sprintf("%s-%d.json", workflowID, now.UnixMilli()))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("backup workflow %s: %w", workflowID, err)
	}
	return backupPath, nil
}
