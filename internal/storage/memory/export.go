// internal/storage/memory/export.go
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rigtwin/twin/internal/pathcodec"
	"github.com/rigtwin/twin/pkg/core"
)

// ExportPath writes p to dir using the given encoding and returns the file
// path. An existing file with the same name is replaced.
func ExportPath(p *core.ReferencePath, dir string, f pathcodec.Format, c pathcodec.Compression) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(dir, p.ID+pathcodec.Extension(f, c))
	err := writeAtomic(outputPath, func(file *os.File) error {
		return pathcodec.Write(file, p, f, c)
	})
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

func (b *Backend) writePathFile(name string, p *core.ReferencePath) error {
	return writeAtomic(filepath.Join(b.cfg.OutputDir, name), func(f *os.File) error {
		return pathcodec.Write(f, p, b.format, b.compression)
	})
}

func (b *Backend) readPathFile(name string) (*core.ReferencePath, error) {
	_, format, comp, _ := pathcodec.SplitName(name)

	f, err := os.Open(filepath.Join(b.cfg.OutputDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return pathcodec.Read(f, format, comp)
}

func (b *Backend) writeRegionsFile(regions []core.Region) error {
	return writeAtomic(filepath.Join(b.cfg.OutputDir, regionsFile), func(f *os.File) error {
		encoder := json.NewEncoder(f)
		encoder.SetIndent("", "  ")
		return encoder.Encode(regions)
	})
}

func (b *Backend) readRegionsFile() ([]core.Region, error) {
	data, err := os.ReadFile(filepath.Join(b.cfg.OutputDir, regionsFile))
	if err != nil {
		return nil, err
	}
	var regions []core.Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("%w: regions file: %v", core.ErrDataIntegrity, err)
	}
	return regions, nil
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place, so readers never see a partial document.
func writeAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
