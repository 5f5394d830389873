package builtin

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/fileflow/fileflow/processor"
)

// Checksum computes a content digest for each file and publishes it to the
// chain context.
type Checksum struct {
	extensions []string
	algorithm  string
}

// NewChecksum constructs the checksum processor with sha256 as the default
// algorithm.
func NewChecksum() (processor.Processor, error) {
	return &Checksum{
		extensions: splitExtensions(defaultExtensions),
		algorithm:  "sha256",
	}, nil
}

func (c *Checksum) Name() string                  { return "checksum" }
func (c *Checksum) SupportedExtensions() []string { return c.extensions }
func (c *Checksum) Priority() int                 { return 200 }
func (c *Checksum) Description() string {
	return "Computes a content checksum for processed files"
}

func (c *Checksum) Params() []processor.Param {
	return []processor.Param{
		{
			Name:    "algorithm",
			Type:    processor.StringParam,
			Default: "sha256",
			Help:    "Digest algorithm",
			Choices: []string{"sha256", "sha1", "md5"},
		},
		{
			Name:    "extensions",
			Type:    processor.StringParam,
			Default: defaultExtensions,
			Help:    "Comma-separated list of extensions to handle",
		},
	}
}

func (c *Checksum) Configure(values map[string]interface{}) error {
	if alg, ok := values["algorithm"].(string); ok && alg != "" {
		c.algorithm = alg
	}
	if raw, ok := values["extensions"].(string); ok && raw != "" {
		c.extensions = splitExtensions(raw)
	}
	return nil
}

func (c *Checksum) Process(ctx context.Context, path string, chainCtx map[string]interface{}) (*processor.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := c.newHash()
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	digest := hex.EncodeToString(h.Sum(nil))

	return &processor.Result{
		Success: true,
		Message: fmt.Sprintf("%s=%s", c.algorithm, digest),
		Stats: map[string]interface{}{
			"algorithm": c.algorithm,
			"checksum":  digest,
		},
		Context: map[string]interface{}{
			"checksum": digest,
		},
	}, nil
}

func (c *Checksum) newHash() (hash.Hash, error) {
	switch c.algorithm {
	case "sha256":
		return sha256.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "md5":
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", c.algorithm)
	}
}
