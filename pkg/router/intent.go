package router

import (
	"regexp"
	"strings"
)

// Intent is the category a query is classified into.
type Intent string

const (
	IntentLint     Intent = "lint"
	IntentDocument Intent = "document"
	IntentGenerate Intent = "generate"
	IntentDesign   Intent = "design"
	IntentRAG      Intent = "rag"
	IntentGeneral  Intent = "general"
)

// Rule assigns Intent to any text matching Pattern.
type Rule struct {
	Intent  Intent
	Pattern *regexp.Regexp
}

// DefaultRules returns the classification rules in priority order. Patterns
// match substrings of the lower-cased text.
func DefaultRules() []Rule {
	return []Rule{
		{IntentLint, regexp.MustCompile(`(lint|eslint|error|fix|bug)`)},
		{IntentDocument, regexp.MustCompile(`(document|pdf|word|excel)`)},
		{IntentGenerate, regexp.MustCompile(`(generate|create|build|make)`)},
		{IntentDesign, regexp.MustCompile(`(design|style|ui|css)`)},
		{IntentRAG, regexp.MustCompile(`(query|search|retrieve|find)`)},
	}
}

// DefaultSkills maps each intent to the skill that serves it.
func DefaultSkills() map[Intent]string {
	return map[Intent]string{
		IntentLint:     "lint-fixer",
		IntentDocument: "docx",
		IntentGenerate: "LLM",
		IntentDesign:   "frontend-design",
		IntentRAG:      "mas-rag-system",
		IntentGeneral:  "LLM",
	}
}

// IntentRouter classifies text with an ordered rule list; the first match wins.
type IntentRouter struct {
	rules  []Rule
	skills map[Intent]string
}

// NewIntentRouter creates an IntentRouter. Nil arguments select the defaults.
func NewIntentRouter(rules []Rule, skills map[Intent]string) *IntentRouter {
	if rules == nil {
		rules = DefaultRules()
	}
	if skills == nil {
		skills = DefaultSkills()
	}
	return &IntentRouter{rules: rules, skills: skills}
}

// Classify returns the intent of the first matching rule, or IntentGeneral.
func (r *IntentRouter) Classify(text string) Intent {
	lower := strings.ToLower(text)
	for _, rule := range r.rules {
		if rule.Pattern.MatchString(lower) {
			return rule.Intent
		}
	}
	return IntentGeneral
}

// SkillFor returns the skill serving intent, falling back to the general skill.
func (r *IntentRouter) SkillFor(intent Intent) string {
	if s, ok := r.skills[intent]; ok {
		return s
	}
	return r.skills[IntentGeneral]
}

// Route classifies text and resolves its skill in one step.
func (r *IntentRouter) Route(text string) (Intent, string) {
	intent := r.Classify(text)
	return intent, r.SkillFor(intent)
}
