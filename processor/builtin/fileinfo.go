// Package builtin holds the processors that ship with the daemon. They are
// registered as a factory source; external processors arrive through plugin
// directories instead.
package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fileflow/fileflow/processor"
)

// defaultExtensions is the file set the builtin processors claim when not
// configured otherwise.
const defaultExtensions = ".jpg,.jpeg,.png,.webp,.avif,.txt,.pdf"

// FileInfo records basic file metadata and seeds the chain context with the
// file size for downstream processors.
type FileInfo struct {
	extensions []string
}

// NewFileInfo constructs the file-info processor.
func NewFileInfo() (processor.Processor, error) {
	return &FileInfo{extensions: splitExtensions(defaultExtensions)}, nil
}

func (f *FileInfo) Name() string                  { return "file-info" }
func (f *FileInfo) SupportedExtensions() []string { return f.extensions }
func (f *FileInfo) Priority() int                 { return 50 }
func (f *FileInfo) Description() string {
	return "Records file size and modification time"
}

func (f *FileInfo) Params() []processor.Param {
	return []processor.Param{
		{
			Name:    "extensions",
			Type:    processor.StringParam,
			Default: defaultExtensions,
			Help:    "Comma-separated list of extensions to handle",
		},
	}
}

func (f *FileInfo) Configure(values map[string]interface{}) error {
	if raw, ok := values["extensions"].(string); ok && raw != "" {
		f.extensions = splitExtensions(raw)
	}
	return nil
}

func (f *FileInfo) Process(ctx context.Context, path string, chainCtx map[string]interface{}) (*processor.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	size := info.Size()
	return &processor.Result{
		Success: true,
		Message: fmt.Sprintf("%s (%s)", info.Name(), humanReadableSize(size)),
		Stats: map[string]interface{}{
			"size_bytes": size,
			"modified":   info.ModTime(),
		},
		Context: map[string]interface{}{
			"file_size": size,
		},
	}, nil
}

func splitExtensions(raw string) []string {
	parts := strings.Split(raw, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, ".") {
			p = "." + p
		}
		exts = append(exts, p)
	}
	return exts
}

func humanReadableSize(n int64) string {
	v := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if v < 1024.0 {
			return fmt.Sprintf("%.1f%s", v, unit)
		}
		v /= 1024.0
	}
	return fmt.Sprintf("%.1fPB", v)
}

// Sources returns the factory source for the builtin processors.
func Sources() []processor.Source {
	return []processor.Source{
		processor.NewFactorySource("builtin", NewFileInfo, NewChecksum),
	}
}
