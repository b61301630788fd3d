package workflow

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const tempFilePattern = "callaudit-*"

// withTempArtifact writes the artifact bytes to a temp file that keeps the
// artifact's extension, calls fn with its path, and removes the file whether
// fn succeeds or not.
func withTempArtifact(ctx context.Context, dir string, artifact *model.Artifact, fn func(path string) error) error {
	log := logging.NewLogger(ctx)

	f, err := os.CreateTemp(dir, tempFilePattern+artifact.Extension())
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Warnf("temp file %q not removed: %v", path, rmErr)
		}
	}()

	if _, err := f.Write(artifact.Content); err != nil {
		_ = f.Close()
		return utils.WrapIfNotNil(err)
	}
	if err := f.Close(); err != nil {
		return utils.WrapIfNotNil(err)
	}

	return fn(path)
}

// DecodeText turns uploaded text bytes into a string. UTF-8 is expected; a
// UTF-8 or UTF-16 byte order mark is honored and stripped.
func DecodeText(content []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), content)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if !utf8.Valid(content) && !hasUTF16BOM(content) {
		return "", utils.WrapIfNotNil(errors.New("the text file is not valid UTF-8"))
	}
	return string(decoded), nil
}

func hasUTF16BOM(content []byte) bool {
	if len(content) < 2 {
		return false
	}
	return (content[0] == 0xFE && content[1] == 0xFF) || (content[0] == 0xFF && content[1] == 0xFE)
}
