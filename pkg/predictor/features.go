package predictor

import (
	"regexp"
	"strings"
)

// Intent is the coarse task category inferred from a description.
type Intent string

const (
	IntentDebug    Intent = "debug"
	IntentEdit     Intent = "edit"
	IntentNavigate Intent = "navigate"
	IntentOnboard  Intent = "onboard"
	IntentContext  Intent = "context"
	IntentUnknown  Intent = "unknown"
)

// Complexity is an informational bucket derived from token count. It is
// not used in candidate scoring.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// TaskFeatures is everything the predictor extracts from a task
// description and its context.
type TaskFeatures struct {
	Intent     Intent
	Tokens     []string
	Files      []string
	Symbols    []string
	ErrorTypes []string
	Complexity Complexity
}

var punctuation = regexp.MustCompile(`[^\w\s./\\-]`)

// intentKeywords are checked in fixed precedence order; the first intent
// with any keyword hit wins.
var intentPrecedence = []struct {
	intent   Intent
	keywords []string
}{
	{IntentDebug, []string{"fix", "error", "bug", "crash", "fail", "failing", "exception", "broken", "debug", "panic", "stack trace"}},
	{IntentEdit, []string{"edit", "change", "modify", "update", "refactor", "rename", "implement", "add", "remove", "write", "create"}},
	{IntentNavigate, []string{"find", "where", "locate", "search", "navigate", "go to", "show", "look up", "browse"}},
	{IntentOnboard, []string{"onboard", "setup", "set up", "install", "configure", "initialize", "getting started", "scaffold"}},
	{IntentContext, []string{"context", "remember", "recall", "history", "what did", "previously", "last time"}},
}

var filePathPattern = regexp.MustCompile(`[\w./\\-]*\w\.(?:go|ts|tsx|js|jsx|py|rs|java|rb|c|cc|cpp|h|hpp|cs|ex|exs|md|json|yaml|yml|toml|sql|sh|proto)\b`)

var symbolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[a-z]+(?:[A-Z][a-z0-9]+)+\b`),      // camelCase
	regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+`), // PascalCase
	regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`),   // snake_case
}

// errorCategories is the fixed regex table mapping raw error text to
// coarse error types.
var errorCategories = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"null_pointer", regexp.MustCompile(`(?i)null\s*pointer|nil\s+pointer|undefined\s+is\s+not|cannot\s+read\s+propert`)},
	{"type_error", regexp.MustCompile(`(?i)type\s*error|type\s+mismatch|cannot\s+convert|incompatible\s+type`)},
	{"syntax_error", regexp.MustCompile(`(?i)syntax\s*error|unexpected\s+token|parse\s+error`)},
	{"import_error", regexp.MustCompile(`(?i)import\s*error|module\s+not\s+found|cannot\s+find\s+(?:module|package)|undefined:\s`)},
	{"timeout", regexp.MustCompile(`(?i)timeout|timed\s+out|deadline\s+exceeded`)},
	{"permission", regexp.MustCompile(`(?i)permission\s+denied|access\s+denied|eacces`)},
}

// ExtractFeatures lowercases and tokenizes the description, classifies the
// task intent, and pulls file, symbol, and error entities from the
// description plus the context's string fields.
func ExtractFeatures(description string, taskContext map[string]interface{}) TaskFeatures {
	tokens := tokenize(description)

	features := TaskFeatures{
		Intent:     classifyIntent(strings.ToLower(description), tokens),
		Tokens:     tokens,
		Complexity: complexityOf(len(tokens)),
	}

	// Entity extraction looks at both the description and every string
	// value carried in the context.
	sources := []string{description}
	for _, v := range taskContext {
		if s, ok := v.(string); ok {
			sources = append(sources, s)
		}
	}

	seenFiles := map[string]struct{}{}
	seenSymbols := map[string]struct{}{}
	for _, source := range sources {
		for _, f := range filePathPattern.FindAllString(source, -1) {
			if _, dup := seenFiles[f]; !dup {
				seenFiles[f] = struct{}{}
				features.Files = append(features.Files, f)
			}
		}
		for _, re := range symbolPatterns {
			for _, sym := range re.FindAllString(source, -1) {
				if _, dup := seenSymbols[sym]; dup {
					continue
				}
				// File names match the snake/camel shapes too; skip them.
				if strings.ContainsAny(sym, "./\\") {
					continue
				}
				seenSymbols[sym] = struct{}{}
				features.Symbols = append(features.Symbols, sym)
			}
		}
	}

	errText := description
	if msg, ok := taskContext["error_message"].(string); ok {
		errText += " " + msg
	}
	for _, category := range errorCategories {
		if category.pattern.MatchString(errText) {
			features.ErrorTypes = append(features.ErrorTypes, category.name)
		}
	}

	return features
}

func tokenize(description string) []string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(description), " ")
	return strings.Fields(cleaned)
}

func classifyIntent(lowered string, tokens []string) Intent {
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	for _, candidate := range intentPrecedence {
		for _, keyword := range candidate.keywords {
			if strings.Contains(keyword, " ") {
				if strings.Contains(lowered, keyword) {
					return candidate.intent
				}
				continue
			}
			if _, ok := tokenSet[keyword]; ok {
				return candidate.intent
			}
		}
	}
	return IntentUnknown
}

func complexityOf(tokenCount int) Complexity {
	switch {
	case tokenCount > 30:
		return ComplexityHigh
	case tokenCount > 15:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}
