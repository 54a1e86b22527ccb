// Package cmake extracts compiler-style arguments from a CMakeLists.txt
// build descriptor. Extraction is best-effort: unresolved variables and
// nonexistent paths are silently skipped rather than erroring, because the
// flags only tune an analyzer that tolerates incomplete include sets.
package cmake

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Project holds the settings parsed from one CMakeLists.txt.
type Project struct {
	sourceDir   string
	IncludeDirs []string
	Definitions []string
	CXXStandard string
	sources     []string
	headers     []string
}

var (
	includeDirsRe = regexp.MustCompile(`(?i)\binclude_directories\s*\((.*?)\)`)
	targetIncRe   = regexp.MustCompile(`(?i)target_include_directories\s*\((.*?)\)`)
	definitionsRe = regexp.MustCompile(`(?i)add_definitions\s*\((.*?)\)`)
	targetDefsRe  = regexp.MustCompile(`(?i)target_compile_definitions\s*\((.*?)\)`)
	cxxStandardRe = regexp.MustCompile(`CMAKE_CXX_STANDARD\s+(\d+)`)
	setSourcesRe  = regexp.MustCompile(`(?i)set\s*\(\s*SOURCES\b`)
	setHeadersRe  = regexp.MustCompile(`(?i)set\s*\(\s*HEADERS\b`)
)

// scope keywords that are not directory or definition arguments.
var scopeKeywords = map[string]bool{"PRIVATE": true, "PUBLIC": true, "INTERFACE": true}

// Parse reads and parses a CMakeLists.txt file.
func Parse(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read build descriptor: %w", err)
	}

	p := &Project{sourceDir: filepath.Dir(abs), CXXStandard: "17"}
	lines := strings.Split(string(data), "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case includeDirsRe.MatchString(line):
			p.addIncludeDirs(includeDirsRe.FindStringSubmatch(line)[1])
		case targetIncRe.MatchString(line):
			p.addTargetIncludeDirs(targetIncRe.FindStringSubmatch(line)[1])
		case definitionsRe.MatchString(line):
			p.addDefinitions(definitionsRe.FindStringSubmatch(line)[1])
		case targetDefsRe.MatchString(line):
			p.addTargetDefinitions(targetDefsRe.FindStringSubmatch(line)[1])
		case cxxStandardRe.MatchString(line):
			p.CXXStandard = cxxStandardRe.FindStringSubmatch(line)[1]
		case setSourcesRe.MatchString(line):
			i = p.parseFileList(lines, i, &p.sources)
		case setHeadersRe.MatchString(line):
			i = p.parseFileList(lines, i, &p.headers)
		}
	}

	return p, nil
}

// CompileArgs returns analyzer compile arguments for a source file: the
// language standard, include paths (descriptor-listed, the file's own
// directory, the descriptor's directory), and preprocessor definitions.
func (p *Project) CompileArgs(sourceFile string) []string {
	args := []string{"-std=c++" + p.CXXStandard}
	for _, dir := range p.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	if abs, err := filepath.Abs(sourceFile); err == nil {
		args = append(args, "-I"+filepath.Dir(abs))
	}
	args = append(args, "-I"+p.sourceDir)
	for _, def := range p.Definitions {
		args = append(args, "-D"+def)
	}
	return args
}

// SourceFiles returns the resolved set(SOURCES ...) entries that exist.
func (p *Project) SourceFiles() []string {
	return append([]string(nil), p.sources...)
}

// HeaderFiles returns the resolved set(HEADERS ...) entries that exist.
func (p *Project) HeaderFiles() []string {
	return append([]string(nil), p.headers...)
}

func (p *Project) addIncludeDirs(argList string) {
	for _, arg := range strings.Fields(argList) {
		if dir, ok := p.resolveExisting(arg); ok {
			p.IncludeDirs = append(p.IncludeDirs, dir)
		}
	}
}

func (p *Project) addTargetIncludeDirs(argList string) {
	fields := strings.Fields(argList)
	// First field is the target name, the rest are scope keywords and dirs.
	for i, arg := range fields {
		if i == 0 || scopeKeywords[arg] {
			continue
		}
		if dir, ok := p.resolveExisting(arg); ok {
			p.IncludeDirs = append(p.IncludeDirs, dir)
		}
	}
}

func (p *Project) addDefinitions(argList string) {
	for _, arg := range strings.Fields(argList) {
		if name, ok := definitionName(arg); ok {
			p.Definitions = append(p.Definitions, name)
		}
	}
}

func (p *Project) addTargetDefinitions(argList string) {
	fields := strings.Fields(argList)
	for i, arg := range fields {
		if i == 0 || scopeKeywords[arg] {
			continue
		}
		name := arg
		if stripped, ok := definitionName(arg); ok {
			name = stripped
		} else if idx := strings.IndexByte(name, '='); idx != -1 {
			name = name[:idx]
		}
		p.Definitions = append(p.Definitions, name)
	}
}

// parseFileList consumes the multi-line body of a set(SOURCES ...) or
// set(HEADERS ...) command and returns the index of the closing line.
func (p *Project) parseFileList(lines []string, start int, dst *[]string) int {
	i := start + 1
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, ")") {
			break
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if file, ok := p.resolveExisting(line); ok {
			*dst = append(*dst, file)
		}
	}
	return i
}

// resolveExisting expands CMake variable references, makes the path
// absolute relative to the descriptor's directory, and reports whether it
// exists on disk.
func (p *Project) resolveExisting(raw string) (string, bool) {
	for _, v := range []string{"${CMAKE_SOURCE_DIR}", "${CMAKE_CURRENT_SOURCE_DIR}", "${CMAKE_CURRENT_LIST_DIR}"} {
		raw = strings.ReplaceAll(raw, v, p.sourceDir)
	}
	if strings.Contains(raw, "${") {
		// Unresolvable variable reference.
		return "", false
	}
	if !filepath.IsAbs(raw) {
		raw = filepath.Join(p.sourceDir, raw)
	}
	if _, err := os.Stat(raw); err != nil {
		return "", false
	}
	return raw, true
}

// definitionName extracts NAME from a -DNAME or -DNAME=value argument.
func definitionName(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "-D") {
		return "", false
	}
	name := arg[2:]
	if idx := strings.IndexByte(name, '='); idx != -1 {
		name = name[:idx]
	}
	return name, name != ""
}
