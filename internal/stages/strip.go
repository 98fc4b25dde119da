package stages

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"monowasm/internal/assembly"
	"monowasm/internal/toolchain"
)

// Strip deploys every linked assembly into the output directory, removing
// IL debug metadata unless debugging is enabled. It returns the deployed
// paths in input order.
func (inv *Invoker) Strip(ctx context.Context, linked []string) ([]string, error) {
	if err := os.MkdirAll(inv.Config.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	deployed := make([]string, len(linked))
	err := forEach(ctx, inv.Config.Jobs, len(linked), func(ctx context.Context, i int) error {
		src := linked[i]
		dst := filepath.Join(inv.Config.OutputDir, assembly.Name(src))
		deployed[i] = dst
		if inv.Config.Debug {
			return copyFile(src, dst)
		}
		if err := inv.run(ctx, toolchain.Command{Name: inv.Config.Tools.CILStrip, Args: []string{src, dst}}); err != nil {
			return err
		}
		return requireOutput(inv.Config.Tools.CILStrip, dst)
	})
	if err != nil {
		return nil, err
	}
	return deployed, nil
}

func copyFile(src, dst string) error {
	// #nosec G304 -- src is a linked assembly under the build dir
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()
	// #nosec G304 -- dst is under the output dir
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
