// Package archive unpacks downloaded ZIP files into per-archive folders.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aozoratools/aozorafetch/internal/metrics"
)

// Sentinel errors surfaced as distinct process exit codes by the CLI.
var (
	ErrInputMissing = errors.New("input directory not found")
	ErrNoArchives   = errors.New("no archive files found")
	ErrUnsafePath   = errors.New("archive member escapes destination directory")
)

const archiveGlob = "*.zip"

var unsafeStemChars = regexp.MustCompile(`[\\/:*?"<>|]+`)

// SanitizeStem turns an archive base name into a safe folder name.
// Runs of filesystem-hostile characters become underscores; leading and
// trailing whitespace and dots are stripped; an empty result falls back
// to "zip".
func SanitizeStem(name string) string {
	name = unsafeStemChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "zip"
	}
	return name
}

// Converter rewrites extracted text files in place, returning the name
// of the source encoding when a conversion happened.
type Converter interface {
	ConvertIfNeeded(path string) (string, error)
}

// Extractor unpacks every archive in an input directory.
type Extractor struct {
	inputDir  string
	outputDir string
	converter Converter
	logger    *zap.Logger
}

// NewExtractor constructs an Extractor. converter may be nil to extract
// without text conversion.
func NewExtractor(inputDir, outputDir string, converter Converter, logger *zap.Logger) *Extractor {
	return &Extractor{
		inputDir:  inputDir,
		outputDir: outputDir,
		converter: converter,
		logger:    logger,
	}
}

// Run processes every archive matching the input glob in name order.
// A malformed archive is logged and skipped. The only fatal conditions
// are a missing input directory and an empty glob, reported via the
// package sentinel errors.
func (e *Extractor) Run(ctx context.Context) error {
	if _, err := os.Stat(e.inputDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputMissing, e.inputDir)
		}
		return fmt.Errorf("stat input dir %s: %w", e.inputDir, err)
	}

	paths, err := filepath.Glob(filepath.Join(e.inputDir, archiveGlob))
	if err != nil {
		return fmt.Errorf("glob archives: %w", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return fmt.Errorf("%w: %s", ErrNoArchives, e.inputDir)
	}

	if err := os.MkdirAll(e.outputDir, 0o750); err != nil {
		return fmt.Errorf("create output dir %s: %w", e.outputDir, err)
	}

	e.logger.Info("Unpacking archives",
		zap.String("input", e.inputDir),
		zap.String("output", e.outputDir),
		zap.Int("count", len(paths)),
	)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.ProcessArchive(p); err != nil {
			e.logger.Error("Skipping archive",
				zap.String("archive", filepath.Base(p)),
				zap.Error(err),
			)
			metrics.BadArchive()
		}
	}
	return nil
}

// ProcessArchive extracts one archive into its sanitized-stem folder
// and converts extracted text members. Per-member failures are logged
// and skipped; only failing to open the archive itself is an error.
func (e *Extractor) ProcessArchive(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		// ErrInsecurePath still yields a usable reader; securePath
		// rejects the offending members individually.
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close() //nolint:errcheck // read-only close

	stem := SanitizeStem(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	destDir := filepath.Join(e.outputDir, stem)
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("create destination %s: %w", destDir, err)
	}

	e.logger.Info("Extracting archive",
		zap.String("archive", filepath.Base(path)),
		zap.String("dest", destDir),
	)

	for _, member := range zr.File {
		extracted, isDir, err := extractMember(member, destDir)
		if err != nil {
			if errors.Is(err, ErrUnsafePath) {
				metrics.UnsafeMemberRejected()
			}
			e.logger.Error("Failed to extract member",
				zap.String("member", member.Name),
				zap.Error(err),
			)
			continue
		}
		metrics.MemberExtracted()
		if isDir || e.converter == nil {
			continue
		}

		enc, err := e.converter.ConvertIfNeeded(extracted)
		if err != nil {
			e.logger.Error("Failed to convert member",
				zap.String("member", member.Name),
				zap.Error(err),
			)
			continue
		}
		if enc != "" {
			rel, relErr := filepath.Rel(destDir, extracted)
			if relErr != nil {
				rel = extracted
			}
			e.logger.Info("Converted to UTF-8",
				zap.String("file", rel),
				zap.String("from", enc),
			)
			metrics.FileConverted(enc)
		}
	}
	return nil
}

// extractMember writes one member under destDir, creating directories
// as needed and copying file bytes verbatim.
func extractMember(member *zip.File, destDir string) (string, bool, error) {
	target, err := securePath(destDir, member.Name)
	if err != nil {
		return "", false, err
	}

	if member.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o750); err != nil {
			return "", false, fmt.Errorf("create directory %s: %w", target, err)
		}
		return target, true, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", false, fmt.Errorf("create parent of %s: %w", target, err)
	}
	src, err := member.Open()
	if err != nil {
		return "", false, fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer src.Close() //nolint:errcheck // read-only close

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", false, fmt.Errorf("create file %s: %w", target, err)
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", false, fmt.Errorf("write member %s: %w", member.Name, err)
	}
	return target, false, nil
}

// securePath resolves a member name inside destDir and rejects
// traversal escapes. The comparison uses cleaned absolute paths, not
// raw string prefixes.
func securePath(destDir, member string) (string, error) {
	destAbs, err := filepath.Abs(destDir)
	if err != nil {
		return "", fmt.Errorf("resolve destination %s: %w", destDir, err)
	}
	target := filepath.Join(destAbs, filepath.FromSlash(member))
	rel, err := filepath.Rel(destAbs, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, member)
	}
	return target, nil
}
