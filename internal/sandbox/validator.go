package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

// Validator rejects code before execution.
type Validator struct {
	cfg      Config
	jsChecks []jsCheck
}

type jsCheck struct {
	pattern *regexp.Regexp
	message string
}

func NewValidator(cfg Config) *Validator {
	checks := []jsCheck{
		{regexp.MustCompile(`\beval\s*\(`), "forbidden: eval()"},
		{regexp.MustCompile(`\bnew\s+Function\s*\(`), "forbidden: new Function()"},
		{regexp.MustCompile(`\brequire\s*\(`), "forbidden: require()"},
		{regexp.MustCompile(`\bimport\s*[\s(]`), "forbidden: import"},
		{regexp.MustCompile(`\b__proto__\b`), "forbidden: __proto__"},
		{regexp.MustCompile(`\bconstructor\s*\[\s*["']constructor["']\s*\]`), "forbidden: constructor access"},
		{regexp.MustCompile(`\.constructor\s*\(`), "forbidden: constructor call"},
		{regexp.MustCompile(`\bglobalThis\b`), "forbidden: globalThis"},
	}
	for _, g := range cfg.ForbiddenGlobals {
		checks = append(checks, jsCheck{
			pattern: regexp.MustCompile(fmt.Sprintf(`\b%s\b`, regexp.QuoteMeta(g))),
			message: fmt.Sprintf("forbidden global: %s", g),
		})
	}
	return &Validator{cfg: cfg, jsChecks: checks}
}

func (v *Validator) Validate(lang Language, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("empty code")
	}
	switch lang {
	case LanguageJavaScript:
		return v.validateJavaScript(code)
	case LanguageGo:
		return v.validateGo(code)
	default:
		return fmt.Errorf("unsupported language: %s", lang)
	}
}

func (v *Validator) validateJavaScript(code string) error {
	for _, c := range v.jsChecks {
		if c.pattern.MatchString(code) {
			return fmt.Errorf("%s", c.message)
		}
	}
	return nil
}

// validateGo accepts import lines followed by statements. Imports must be in
// the allowed list.
func (v *Validator) validateGo(code string) error {
	imports, body := splitGoImports(code)
	for _, imp := range imports {
		if !v.packageAllowed(imp) {
			return fmt.Errorf("package not in allowed list: %s", imp)
		}
	}

	src := "package main\n\nfunc _() {\n" + body + "\n}\n"
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.AllErrors)
	if err != nil {
		return fmt.Errorf("Go syntax error: %w", err)
	}

	var validationErr error
	ast.Inspect(file, func(n ast.Node) bool {
		if validationErr != nil {
			return false
		}
		switch node := n.(type) {
		case *ast.GoStmt:
			validationErr = fmt.Errorf("forbidden: go statement")
		// yaegi cannot stop an interpreted loop once the timeout fires, so
		// loops must be bounded by a condition or a range over data.
		case *ast.ForStmt:
			if node.Cond == nil {
				validationErr = fmt.Errorf("forbidden: for loop without condition")
			}
		case *ast.BranchStmt:
			if node.Tok == token.GOTO {
				validationErr = fmt.Errorf("forbidden: goto")
			}
		case *ast.ChanType:
			validationErr = fmt.Errorf("forbidden: channels")
		case *ast.SelectorExpr:
			if ident, ok := node.X.(*ast.Ident); ok {
				switch ident.Name {
				case "os", "exec", "syscall", "unsafe", "reflect", "http", "net":
					validationErr = fmt.Errorf("forbidden package reference: %s.%s", ident.Name, node.Sel.Name)
				}
			}
		}
		return validationErr == nil
	})
	return validationErr
}

func (v *Validator) packageAllowed(pkg string) bool {
	for _, a := range v.cfg.AllowedPackages {
		if pkg == a {
			return true
		}
	}
	return false
}

// splitGoImports pulls `import "x"` lines off the top of a snippet.
func splitGoImports(code string) ([]string, string) {
	var imports []string
	lines := strings.Split(code, "\n")
	var rest []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") {
			imports = append(imports, strings.Trim(strings.TrimSpace(strings.TrimPrefix(trimmed, "import ")), `"`))
			continue
		}
		rest = append(rest, line)
	}
	return imports, strings.Join(rest, "\n")
}
