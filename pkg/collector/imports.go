package collector

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const maxImportFileBytes = 1 << 20

var (
	pyImportLine = regexp.MustCompile(`^\s*(?:from\s+[\w.]+\s+import\s+.+|import\s+[\w., ]+)$`)
	goImportLine = regexp.MustCompile(`^\s*(?:import\s+)?(?:[\w.]+\s+)?"([^"]+)"\s*$`)
)

// scanImports lists the import statements of the module at path. Python
// files are parsed with tree-sitter; other files fall back to line
// matching. Any failure yields an empty list.
func scanImports(ctx context.Context, path string, max int) []string {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() > maxImportFileBytes {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw":
		if imports, err := pythonImports(ctx, content, max); err == nil {
			return imports
		}
		return matchImports(content, pyImportLine, max)
	case ".go":
		return goImports(content, max)
	default:
		return nil
	}
}

func pythonImports(ctx context.Context, content []byte, max int) ([]string, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var imports []string
	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 && len(imports) < max {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node.Type() {
		case "import_statement", "import_from_statement", "future_import_statement":
			imports = append(imports, strings.Join(strings.Fields(node.Content(content)), " "))
			continue
		}
		// Push in reverse so statements come out in source order.
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.NamedChild(i))
		}
	}
	return imports, nil
}

func matchImports(content []byte, re *regexp.Regexp, max int) []string {
	var imports []string
	for _, line := range strings.Split(string(content), "\n") {
		if re.MatchString(line) {
			imports = append(imports, strings.TrimSpace(line))
			if len(imports) >= max {
				break
			}
		}
	}
	return imports
}

func goImports(content []byte, max int) []string {
	var (
		imports []string
		inBlock bool
	)
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "import (":
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		case !inBlock && !strings.HasPrefix(trimmed, "import "):
			continue
		}
		if m := goImportLine.FindStringSubmatch(trimmed); m != nil {
			imports = append(imports, m[1])
			if len(imports) >= max {
				break
			}
		}
	}
	return imports
}
