package enrich

import "strings"

// SensitivityRule is one declarative rule in the sensitivity rule table.
// The first matching rule (top-to-bottom) sets the resource's
// sensitivity_level; an empty pattern field matches anything. The table
// is fixed when the Enricher is constructed (Config.SensitivityRules,
// falling back to DefaultSensitivityRules). The YAML configuration has no
// section for it, so ingestd always runs with DefaultSensitivityRules.
type SensitivityRule struct {
	ResourceType    string
	EndpointPrefix  string
	Service         string
	Level           int
}

// DefaultSensitivityRules is a reasonable baseline table for a security
// event pipeline: admin/IAM surfaces and data-plane object reads rank
// highest, generic API traffic lowest.
var DefaultSensitivityRules = []SensitivityRule{
	{Service: "iam", Level: 5},
	{Service: "kms", Level: 5},
	{EndpointPrefix: "/admin", Level: 5},
	{ResourceType: "cloud_resource", Service: "s3", Level: 4},
	{EndpointPrefix: "/v1/users", Level: 4},
	{ResourceType: "application", Level: 2},
	{EndpointPrefix: "/v1/health", Level: 1},
}

// Classifier assigns a sensitivity_level in [1,5] to a resource from a
// rule table. The zero value uses DefaultSensitivityRules.
type Classifier struct {
	rules []SensitivityRule
}

// NewClassifier creates a Classifier from rules. A nil/empty slice falls
// back to DefaultSensitivityRules.
func NewClassifier(rules []SensitivityRule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultSensitivityRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the sensitivity level for (resourceType, endpoint,
// service), defaulting to 1 when no rule matches.
func (c *Classifier) Classify(resourceType, endpoint, service string) int {
	for _, rule := range c.rules {
		if rule.ResourceType != "" && rule.ResourceType != resourceType {
			continue
		}
		if rule.EndpointPrefix != "" && !strings.HasPrefix(endpoint, rule.EndpointPrefix) {
			continue
		}
		if rule.Service != "" && rule.Service != service {
			continue
		}
		return rule.Level
	}
	return 1
}
