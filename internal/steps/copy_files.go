// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/parastep/parastep/internal/step"
	"github.com/parastep/parastep/pkg/fspath"
	"github.com/parastep/parastep/pkg/types"
)

// CopyFiles copies each SourceFiles item into DestinationFolder. Output
// identities are built from the caller's spelling of the folder, so a
// relative folder yields relative identities.
type CopyFiles struct {
	step.Base
}

// Execute implements step.Runner.
func (s *CopyFiles) Execute(_ context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	destSpec, _ := in.Scalar("DestinationFolder")
	destDir, err := s.Path(in, "DestinationFolder")
	if err != nil {
		return nil, err
	}
	skipUnchanged, err := in.Bool("SkipUnchanged")
	if err != nil {
		return nil, err
	}

	ec := s.ExecutionContext()
	var copied []step.Item
	for _, src := range in.Items("SourceFiles") {
		srcPath, err := ec.GetAbsolutePath(src.Identity)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(srcPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				diags.Errorf("source file %q does not exist", src.Identity)
			} else {
				diags.Errorf("cannot read source file %q: %v", src.Identity, err)
			}
			continue
		}
		info, err := os.Stat(srcPath)
		if err != nil {
			diags.Errorf("cannot stat source file %q: %v", src.Identity, err)
			continue
		}

		base := filepath.Base(srcPath)
		destPath := string(fspath.Append(types.FilesystemPath(destDir), base))
		item := src.
			With(step.MetaFullPath, destPath).
			With(step.MetaOriginalItemSpec, src.Identity)
		item.Identity = filepath.Join(destSpec, base)

		if skipUnchanged && sameContent(destPath, data) {
			diags.Messagef("skipping unchanged file %q", item.Identity)
			copied = append(copied, item.With("Skipped", strconv.FormatBool(true)))
			continue
		}

		if err := os.MkdirAll(destDir, 0o755); err != nil {
			diags.Errorf("cannot create destination folder %q: %v", destSpec, err)
			break
		}
		if err := os.WriteFile(destPath, data, info.Mode().Perm()); err != nil {
			diags.Errorf("cannot copy %q to %q: %v", src.Identity, item.Identity, err)
			continue
		}
		copied = append(copied, item)
	}
	return step.Outputs{"CopiedFiles": copied}, nil
}

func sameContent(path string, data []byte) bool {
	existing, err := os.ReadFile(path)
	return err == nil && bytes.Equal(existing, data)
}
