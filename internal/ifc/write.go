package ifc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/steelifc/pkg/step"
)

const viewDefinition = "ViewDefinition [ReferenceView]"

// File returns the document as an exchange file. The instances are shared
// with the document and must not be modified.
func (d *Document) File(name string) *step.File {
	header := step.HeaderInfo{
		Description:         []string{viewDefinition},
		Name:                name,
		TimeStamp:           d.opts.Clock().UTC().Format("2006-01-02T15:04:05"),
		Author:              []string{d.opts.Author},
		Organization:        []string{d.opts.Organization},
		PreprocessorVersion: d.opts.Application,
		OriginatingSystem:   d.opts.Application,
		Schemas:             []string{Schema},
	}
	return &step.File{Header: header.Instances(), Instances: d.instances}
}

// Serialize writes the complete document to w. It does not change the
// document and may be called any number of times.
func (d *Document) Serialize(w io.Writer) error {
	return d.serialize(w, "")
}

func (d *Document) serialize(w io.Writer, name string) error {
	if err := step.Encode(w, d.File(name)); err != nil {
		return fmt.Errorf("encoding IFC: %w", err)
	}
	return nil
}

// WriteFile serializes the document to path. The file is written to a
// temporary sibling first and renamed into place, so an existing file is
// never left half-written.
func (d *Document) WriteFile(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := d.serialize(tmp, filepath.Base(path)); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming to %s: %w", path, err)
	}

	d.log.Info("IFC written",
		zap.String("path", path),
		zap.Int("elements", len(d.elements)),
		zap.Int("instances", len(d.instances)))
	return nil
}
