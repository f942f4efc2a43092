// Package wheel writes minimal, installable wheel archives for the packages
// a fixture declares, and reads their metadata back.
package wheel

import (
	"archive/zip"
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/pipyaml/internal/fixture"
)

// Tag is the compatibility tag every generated wheel carries.
const Tag = "py2.py3-none-any"

// nameEscape matches runs of characters not allowed in a wheel filename
// component.
var nameEscape = regexp.MustCompile(`[^A-Za-z0-9.]+`)

// EscapeName normalizes a distribution name for use in a filename.
func EscapeName(name string) string {
	return nameEscape.ReplaceAllString(name, "_")
}

// Filename returns the archive name for a package.
func Filename(spec fixture.PackageSpec) string {
	return fmt.Sprintf("%s-%s-%s.whl", EscapeName(spec.Name), EscapeName(spec.Version), Tag)
}

// DistInfo returns the .dist-info directory name for a package.
func DistInfo(spec fixture.PackageSpec) string {
	return fmt.Sprintf("%s-%s.dist-info", EscapeName(spec.Name), EscapeName(spec.Version))
}

// file is one archive member.
type file struct {
	name string
	data []byte
}

// WriteBasic writes a pure-python wheel for spec into dir and returns the
// archive path. The wheel holds an importable top-level module plus
// METADATA, WHEEL, top_level.txt and RECORD.
func WriteBasic(dir string, spec fixture.PackageSpec) (string, error) {
	if spec.Name == "" || spec.Version == "" {
		return "", fmt.Errorf("wheel needs both name and version, got %q", spec.String())
	}

	module := strings.ReplaceAll(EscapeName(spec.Name), ".", "_")
	distInfo := DistInfo(spec)

	files := []file{
		{module + "/__init__.py", []byte(fmt.Sprintf(
			"__version__ = %q\n\ndef hello():\n    return \"Hello From %s\"\n", spec.Version, spec.Name))},
		{distInfo + "/METADATA", Metadata(spec)},
		{distInfo + "/WHEEL", []byte("Wheel-Version: 1.0\nGenerator: pipyaml\nRoot-Is-Purelib: true\nTag: py2-none-any\nTag: py3-none-any\n")},
		{distInfo + "/top_level.txt", []byte(module + "\n")},
	}
	files = append(files, file{distInfo + "/RECORD", record(files, distInfo+"/RECORD")})

	path := filepath.Join(dir, Filename(spec))
	if err := writeZip(path, files); err != nil {
		return "", fmt.Errorf("failed to write wheel %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// Metadata renders the core metadata file for spec.
func Metadata(spec fixture.PackageSpec) []byte {
	var buf bytes.Buffer
	buf.WriteString("Metadata-Version: 2.1\n")
	fmt.Fprintf(&buf, "Name: %s\n", spec.Name)
	fmt.Fprintf(&buf, "Version: %s\n", spec.Version)
	buf.WriteString("Summary: UNKNOWN\n")
	for _, dep := range spec.Depends {
		fmt.Fprintf(&buf, "Requires-Dist: %s\n", dep)
	}

	extras := make([]string, 0, len(spec.Extras))
	for extra := range spec.Extras {
		extras = append(extras, extra)
	}
	slices.Sort(extras)
	for _, extra := range extras {
		fmt.Fprintf(&buf, "Provides-Extra: %s\n", extra)
	}
	for _, extra := range extras {
		for _, dep := range spec.Extras[extra] {
			fmt.Fprintf(&buf, "Requires-Dist: %s; extra == %q\n", dep, extra)
		}
	}
	buf.WriteString("\nUNKNOWN\n")
	return buf.Bytes()
}

// record builds the RECORD file listing every member with its digest.
// RECORD itself is listed without hash or size.
func record(files []file, self string) []byte {
	var buf bytes.Buffer
	for _, f := range files {
		sum := sha256.Sum256(f.data)
		fmt.Fprintf(&buf, "%s,sha256=%s,%d\n", f.name, base64.RawURLEncoding.EncodeToString(sum[:]), len(f.data))
	}
	fmt.Fprintf(&buf, "%s,,\n", self)
	return buf.Bytes()
}

func writeZip(path string, files []file) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	zw := zip.NewWriter(out)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return err
		}
		if _, err := w.Write(f.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Info is the metadata read back from a wheel.
type Info struct {
	Name         string
	Version      string
	RequiresDist []string
	Extras       []string
}

// ReadMetadata opens a wheel and parses its .dist-info/METADATA.
func ReadMetadata(path string) (*Info, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wheel: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		dir, base := filepath.Split(filepath.FromSlash(f.Name))
		if base != "METADATA" || !strings.HasSuffix(filepath.Clean(dir), ".dist-info") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open METADATA: %w", err)
		}
		defer rc.Close()
		return ParseMetadata(rc)
	}
	return nil, fmt.Errorf("%s: no .dist-info/METADATA", filepath.Base(path))
}

// ParseMetadata reads the header section of a core metadata file.
func ParseMetadata(r io.Reader) (*Info, error) {
	info := &Info{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break // Body follows the headers
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Name":
			info.Name = value
		case "Version":
			info.Version = value
		case "Requires-Dist":
			info.RequiresDist = append(info.RequiresDist, value)
		case "Provides-Extra":
			info.Extras = append(info.Extras, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read METADATA: %w", err)
	}
	if info.Name == "" || info.Version == "" {
		return nil, fmt.Errorf("METADATA is missing Name or Version")
	}
	return info, nil
}
