package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"monowasm/internal/assembly"
	"monowasm/internal/bytebuf"
	"monowasm/internal/toolchain"
)

// LoaderData is what the loader template is rendered with.
type LoaderData struct {
	// Files is a JavaScript array literal of deployed assembly names, entry
	// first.
	Files     string
	Wasm      string
	StackSize int
}

// LoaderGen renders the loader template from the library directory into the
// output directory, embedding the ordered manifest of deployed assemblies.
func (inv *Invoker) LoaderGen(ctx context.Context, deployed []string) (string, error) {
	tmplPath := inv.Config.LoaderTemplate()
	// #nosec G304 -- template ships in the library dir
	src, err := os.ReadFile(tmplPath)
	if err != nil {
		return "", fmt.Errorf("failed to read loader template: %w", err)
	}
	tmpl, err := template.New(filepath.Base(tmplPath)).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("loader template %s: %w", tmplPath, err)
	}
	files, err := json.Marshal(assembly.Names(deployed))
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	data := LoaderData{
		Files:     string(files),
		Wasm:      filepath.Base(inv.Config.OutputBinary()),
		StackSize: inv.Config.StackSize,
	}
	buf := bytebuf.New(len(src) + len(files))
	if err := tmpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("loader template %s: %w", tmplPath, err)
	}

	script := buf.Bytes()
	if minifier := strings.Fields(inv.Config.Tools.Minifier); len(minifier) > 0 {
		minified := bytebuf.New(buf.Len())
		cmd := toolchain.Command{
			Name:   minifier[0],
			Args:   minifier[1:],
			Stdin:  bytes.NewReader(script),
			Stdout: minified,
		}
		if err := inv.run(ctx, cmd); err != nil {
			return "", err
		}
		script = minified.Bytes()
	}

	out := inv.Config.OutputLoader()
	if err := writeAtomic(out, script); err != nil {
		return "", err
	}
	return out, nil
}
