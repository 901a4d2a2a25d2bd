package toolserver

import (
	"context"
	"fmt"

	"github.com/deskmcp/deskmcp/pkg/types"
	"go.uber.org/zap"
)

// ListDesktopFilesToolName is the name of the directory listing tool.
const ListDesktopFilesToolName = "list_desktop_files"

var listDesktopFilesTool = types.Tool{
	Name:        ListDesktopFilesToolName,
	Description: "Lists all files and folders on the Desktop with their names",
	InputSchema: types.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{},
	},
	Annotations: map[string]any{
		"title":        "List desktop files",
		"readOnlyHint": true,
	},
}

// listDesktopFiles returns the names of the immediate entries of the configured directory.
// Arguments are ignored. Entries are neither sorted nor filtered, hidden entries included.
func (s *ToolServerService) listDesktopFiles(ctx context.Context, _ map[string]any) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory %s: %w", s.dir, err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", s.dir, err)
	}
	if names == nil {
		// an empty directory is a valid, zero-length listing
		names = []string{}
	}

	s.logger.Debug("listed directory", zap.String("dir", s.dir), zap.Int("entries", len(names)))
	return names, nil
}
