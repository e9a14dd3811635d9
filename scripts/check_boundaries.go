// Command check_boundaries enforces the import rules between the layers of
// every bounded context and between the platform and the contexts.
//
//	go run ./scripts/check_boundaries.go
package main

import (
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "courier"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists the module-local prefixes a layer may import, relative to
// its service root. Stdlib is always allowed; thirdParty opts a layer into
// external modules.
type layerRule struct {
	local      []string
	shared     []string
	thirdParty bool
}

var contextLayers = map[string]layerRule{
	"domain":      {local: []string{"domain"}},
	"ports":       {local: []string{"domain", "ports"}, shared: []string{"contracts"}},
	"application": {local: []string{"application", "domain", "ports"}, shared: []string{"contracts"}},
	"transport":   {local: []string{"transport"}},
}

func main() {
	root := flag.String("root", ".", "repository root")
	flag.Parse()

	violations := collectViolations(*root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		parts := strings.Split(rel, "/")

		switch {
		case len(parts) >= 4 && parts[0] == "contexts":
			violations = append(violations, checkContextFile(path, rel, parts)...)
		case len(parts) >= 3 && parts[0] == "internal" && parts[1] == "platform":
			violations = append(violations, checkPlatformFile(path, rel)...)
		}
		return nil
	})

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})
	return violations
}

func checkContextFile(path string, rel string, parts []string) []violation {
	serviceRoot := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[1], parts[2])
	rule, ruled := contextLayers[parts[3]]

	var violations []violation
	for _, imp := range parseImports(path, rel, &violations) {
		if hasPrefix(imp.path, modulePath+"/contexts") && !hasPrefix(imp.path, serviceRoot) {
			violations = append(violations, violation{rel, imp.line, imp.path, "cross-module imports are forbidden"})
		}
		if !ruled || isStdlib(imp.path) {
			continue
		}
		if allowedByRule(imp.path, serviceRoot, rule) {
			continue
		}
		violations = append(violations, violation{rel, imp.line, imp.path, parts[3] + " import is outside explicit allowlist"})
	}
	return violations
}

// Platform code may reach into a context only through its module root,
// ports, transport DTOs and domain errors.
func checkPlatformFile(path string, rel string) []violation {
	var violations []violation
	for _, imp := range parseImports(path, rel, &violations) {
		if !hasPrefix(imp.path, modulePath+"/contexts") {
			continue
		}
		if strings.Contains(imp.path, "/adapters/") || strings.Contains(imp.path, "/application/") {
			violations = append(violations, violation{rel, imp.line, imp.path, "platform must not import context internals"})
		}
	}
	return violations
}

type importRef struct {
	path string
	line int
}

func parseImports(path string, rel string, violations *[]violation) []importRef {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		*violations = append(*violations, violation{File: rel, Line: 1, Rule: "file must parse"})
		return nil
	}
	refs := make([]importRef, 0, len(file.Imports))
	for _, imp := range file.Imports {
		refs = append(refs, importRef{
			path: strings.Trim(imp.Path.Value, "\""),
			line: fset.Position(imp.Pos()).Line,
		})
	}
	return refs
}

func allowedByRule(importPath string, serviceRoot string, rule layerRule) bool {
	for _, local := range rule.local {
		if hasPrefix(importPath, serviceRoot+"/"+local) {
			return true
		}
	}
	for _, shared := range rule.shared {
		if hasPrefix(importPath, modulePath+"/"+shared) {
			return true
		}
	}
	return rule.thirdParty && !hasPrefix(importPath, modulePath)
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
