package types

import "fmt"

// ImportStyle describes how a language expresses module imports, enough for
// the code generator to union and emit import additions.
type ImportStyle string

const (
	ImportStyleGoLike     ImportStyle = "go"         // import ( "pkg" )
	ImportStyleCLike      ImportStyle = "c_include"  // #include <pkg>
	ImportStyleFromImport ImportStyle = "from_import" // from pkg import name
	ImportStyleRequire    ImportStyle = "require"    // const x = require("pkg")
	ImportStyleUsing      ImportStyle = "using"      // using Namespace;
)

// LanguageProfile is the closed per-language configuration table consulted
// by the walker, detector, and variation analyzer.
type LanguageProfile struct {
	Language         Language
	Extensions       []string
	FunctionPatterns []string
	TypeNames        map[string]bool
	TestFileGlobs    []string
	ImportSyntax     ImportStyle
}

// SupportedLanguages is the closed enum of languages the engine dispatches
// statically. An unrecognized language string must never reach this far —
// callers resolve it through LookupLanguage first.
var SupportedLanguages = []Language{
	LangGo, LangPython, LangJavaScript, LangTypeScript,
	LangJava, LangCSharp, LangPHP, LangRust, LangCPlusPlus,
}

// LookupLanguage validates a caller-supplied language string against the
// closed enum, returning it unchanged or an error — never dispatched
// dynamically on an unrecognized value.
func LookupLanguage(s string) (Language, error) {
	for _, l := range SupportedLanguages {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unrecognized language %q", s)
}

// DefaultLanguageProfiles returns the built-in profile table for every
// supported language, with conservative default function-pattern queries
// handed to the pattern executor and common test-file glob conventions.
func DefaultLanguageProfiles() map[Language]LanguageProfile {
	return map[Language]LanguageProfile{
		LangGo: {
			Language:         LangGo,
			Extensions:       []string{".go"},
			FunctionPatterns: []string{"function_declaration", "method_declaration", "func_literal"},
			TypeNames:        stringSet("int", "int64", "int32", "string", "bool", "float64", "float32", "byte", "rune", "error", "any", "interface{}"),
			TestFileGlobs:    []string{"*_test.go"},
			ImportSyntax:     ImportStyleGoLike,
		},
		LangPython: {
			Language:         LangPython,
			Extensions:       []string{".py"},
			FunctionPatterns: []string{"function_definition", "lambda"},
			TypeNames:        stringSet("int", "str", "bool", "float", "bytes", "list", "dict", "tuple", "set", "None"),
			TestFileGlobs:    []string{"test_*.py", "*_test.py"},
			ImportSyntax:     ImportStyleFromImport,
		},
		LangJavaScript: {
			Language:         LangJavaScript,
			Extensions:       []string{".js", ".mjs", ".cjs", ".jsx"},
			FunctionPatterns: []string{"function_declaration", "method_definition", "arrow_function"},
			TypeNames:        stringSet("number", "string", "boolean", "object", "undefined", "null"),
			TestFileGlobs:    []string{"*.test.js", "*.spec.js"},
			ImportSyntax:     ImportStyleRequire,
		},
		LangTypeScript: {
			Language:         LangTypeScript,
			Extensions:       []string{".ts", ".tsx"},
			FunctionPatterns: []string{"function_declaration", "method_definition", "arrow_function"},
			TypeNames:        stringSet("number", "string", "boolean", "object", "undefined", "null", "any", "unknown", "void"),
			TestFileGlobs:    []string{"*.test.ts", "*.spec.ts"},
			ImportSyntax:     ImportStyleRequire,
		},
		LangJava: {
			Language:         LangJava,
			Extensions:       []string{".java"},
			FunctionPatterns: []string{"method_declaration", "constructor_declaration"},
			TypeNames:        stringSet("int", "long", "double", "float", "boolean", "char", "byte", "short", "String", "Object", "void"),
			TestFileGlobs:    []string{"*Test.java", "Test*.java"},
			ImportSyntax:     ImportStyleGoLike,
		},
		LangCSharp: {
			Language:         LangCSharp,
			Extensions:       []string{".cs"},
			FunctionPatterns: []string{"method_declaration", "local_function_statement"},
			TypeNames:        stringSet("int", "long", "double", "float", "bool", "char", "byte", "short", "string", "object", "void", "var"),
			TestFileGlobs:    []string{"*Tests.cs", "*Test.cs"},
			ImportSyntax:     ImportStyleUsing,
		},
		LangPHP: {
			Language:         LangPHP,
			Extensions:       []string{".php"},
			FunctionPatterns: []string{"function_definition", "method_declaration"},
			TypeNames:        stringSet("int", "float", "string", "bool", "array", "object", "mixed", "void", "null"),
			TestFileGlobs:    []string{"*Test.php"},
			ImportSyntax:     ImportStyleGoLike,
		},
		LangRust: {
			Language:         LangRust,
			Extensions:       []string{".rs"},
			FunctionPatterns: []string{"function_item", "closure_expression"},
			TypeNames:        stringSet("i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64", "f32", "f64", "bool", "char", "str", "String", "Vec", "Option", "Result"),
			TestFileGlobs:    []string{"*_test.rs", "tests/*.rs"},
			ImportSyntax:     ImportStyleGoLike,
		},
		LangCPlusPlus: {
			Language:         LangCPlusPlus,
			Extensions:       []string{".cpp", ".cc", ".cxx", ".hpp", ".h", ".hh"},
			FunctionPatterns: []string{"function_definition", "lambda_expression"},
			TypeNames:        stringSet("int", "long", "double", "float", "bool", "char", "short", "void", "auto", "std::string", "size_t"),
			TestFileGlobs:    []string{"*_test.cpp", "*_test.cc"},
			ImportSyntax:     ImportStyleCLike,
		},
	}
}

func stringSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
