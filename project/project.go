// Package project implements the project descriptor loader consumed by the
// front-end collaborator (§6.4): a TOML file naming the project, its
// ordered source file list, the output directory, and how linked-impl
// paths are resolved.
package project

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// DescriptorFileName is the conventional name of a project descriptor file
// within a project directory.
const DescriptorFileName = "til.toml"

// tomlProject mirrors the descriptor's on-disk TOML shape (§6.4).
type tomlProject struct {
	Name               string   `toml:"name"`
	Sources            []string `toml:"sources"`
	OutputDir          string   `toml:"output-dir"`
	LinkRelativeToFile bool     `toml:"link_relative_to_file"`
}

// Descriptor is a loaded, path-resolved project descriptor (§6.4). The core
// treats Sources and every linked-implementation path as already-resolved
// strings; this package is the one place that interprets
// LinkRelativeToFile.
type Descriptor struct {
	Name      string
	AbsPath   string // directory containing the descriptor file
	Sources   []string
	OutputDir string

	// LinkRelativeToFile selects whether a linked implementation's path is
	// resolved relative to the source file that declares it (true) or
	// relative to the descriptor itself (false, the default).
	LinkRelativeToFile bool
}

// Load reads and validates the project descriptor at dir/DescriptorFileName.
func Load(dir string) (*Descriptor, error) {
	path := filepath.Join(dir, DescriptorFileName)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open project descriptor at %q: %w", path, err)
	}
	defer f.Close()

	buf, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("error reading project descriptor at %q: %w", path, err)
	}

	var tp tomlProject
	if err := toml.Unmarshal(buf, &tp); err != nil {
		return nil, fmt.Errorf("error parsing project descriptor at %q: %w", path, err)
	}

	if tp.Name == "" {
		return nil, fmt.Errorf("project descriptor at %q is missing a name", path)
	}
	if len(tp.Sources) == 0 {
		return nil, fmt.Errorf("project descriptor at %q declares no source files", path)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve absolute path for %q: %w", dir, err)
	}

	sources := make([]string, len(tp.Sources))
	for i, src := range tp.Sources {
		sources[i] = filepath.Join(absDir, src)
	}

	outDir := tp.OutputDir
	if outDir == "" {
		outDir = "build"
	}

	return &Descriptor{
		Name:               tp.Name,
		AbsPath:            absDir,
		Sources:            sources,
		OutputDir:          filepath.Join(absDir, outDir),
		LinkRelativeToFile: tp.LinkRelativeToFile,
	}, nil
}

// ResolveLinkPath resolves a linked implementation's raw path string
// (§4.7, §6.4), given the absolute path of the source file that declared
// the link, per d.LinkRelativeToFile.
func (d *Descriptor) ResolveLinkPath(sourceFile, rawPath string) string {
	if filepath.IsAbs(rawPath) {
		return rawPath
	}

	if d.LinkRelativeToFile {
		return filepath.Join(filepath.Dir(sourceFile), rawPath)
	}

	return filepath.Join(d.AbsPath, rawPath)
}
