package compose

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zpdzap/drydock/internal/ids"
)

// RenderedFile is the name of the compose document inside an artifact dir.
const RenderedFile = "docker-compose.yml"

// Artifacts are the temporary files of one operation on one deployment.
type Artifacts struct {
	Dir         string
	ComposeFile string // empty for kinds without a compose document
	LogFile     string
}

// Render writes the compose document and an empty <verb>.log into a fresh
// private temp directory.
func (d *Definition) Render(verb Verb) (*Artifacts, error) {
	dir, err := os.MkdirTemp("", "drydock-"+normalizeProjectName(d.id)+"-")
	if err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	a := &Artifacts{Dir: dir, LogFile: filepath.Join(dir, string(verb)+".log")}

	if d.Startable() {
		data, err := yaml.Marshal(d.Data())
		if err != nil {
			a.Release()
			return nil, fmt.Errorf("marshaling compose document: %w", err)
		}
		a.ComposeFile = filepath.Join(dir, RenderedFile)
		if err := os.WriteFile(a.ComposeFile, data, 0o600); err != nil {
			a.Release()
			return nil, fmt.Errorf("writing compose document: %w", err)
		}
	}

	if err := os.WriteFile(a.LogFile, nil, 0o600); err != nil {
		a.Release()
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	return a, nil
}

// Release removes the artifact directory. It is safe to call more than once.
func (a *Artifacts) Release() error {
	if a == nil || a.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(a.Dir); err != nil {
		return fmt.Errorf("removing %s: %w", a.Dir, err)
	}
	return nil
}

// PersistDebug copies the artifacts into the debug directory, if one is set,
// under a name that sorts by time. It returns the prefix used.
func (d *Definition) PersistDebug(verb Verb, a *Artifacts) (string, error) {
	dir := d.DebugDir()
	if dir == "" || a == nil {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating debug dir: %w", err)
	}

	prefix := filepath.Join(dir, fmt.Sprintf("%s-%s-%s", ids.New(), normalizeProjectName(d.id), verb))
	if a.ComposeFile != "" {
		if err := copyFile(a.ComposeFile, prefix+".yml"); err != nil {
			return prefix, err
		}
	}
	if err := copyFile(a.LogFile, prefix+".log"); err != nil {
		return prefix, err
	}
	return prefix, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return out.Close()
}
