package actions

// Rule maps website paths to action API paths.
type Rule struct {
	PathPattern string `json:"pathPattern"`
	APIPath     string `json:"apiPath"`
}

// RulesFile is the body served at /actions.json.
type RulesFile struct {
	Rules []Rule `json:"rules"`
}

// DefaultRules exposes every /api route as an action under the same path.
func DefaultRules() RulesFile {
	return RulesFile{
		Rules: []Rule{
			{PathPattern: "/api/**", APIPath: "/api/**"},
		},
	}
}
