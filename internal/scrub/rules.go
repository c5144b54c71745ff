package scrub

// Rule is one credential pattern. When Keywords is non-empty the pattern is
// only tried on text containing at least one keyword (case-insensitive).
type Rule struct {
	ID       string
	Pattern  string
	Keywords []string
}

// DefaultRules covers credentials people tend to paste into chat.
func DefaultRules() []Rule {
	return []Rule{
		// Slack
		{ID: "slack-token", Pattern: `xox[abposr]-[A-Za-z0-9-]{10,}`},
		{ID: "slack-app-token", Pattern: `xapp-\d-[A-Za-z0-9-]{10,}`},
		{ID: "slack-webhook", Pattern: `https://hooks\.slack\.com/(?:services|workflows)/[A-Za-z0-9/_-]+`},

		// Model providers
		{ID: "anthropic-key", Pattern: `sk-ant-[A-Za-z0-9_-]{20,}`},
		{ID: "openai-key", Pattern: `sk-(?:proj-)?[A-Za-z0-9_-]{20,}`},

		// Source hosting
		{ID: "github-token", Pattern: `(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}`},
		{ID: "github-fine-grained", Pattern: `github_pat_[A-Za-z0-9_]{22,}`},
		{ID: "gitlab-token", Pattern: `glpat-[A-Za-z0-9-]{20,}`},

		// Cloud
		{ID: "aws-access-key-id", Pattern: `(?:A3T[A-Z0-9]|AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}`},
		{
			ID:       "aws-secret-access-key",
			Pattern:  `(?i)(?:aws_secret_access_key|secret_access_key)\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords: []string{"secret_access_key"},
		},
		{ID: "google-api-key", Pattern: `AIza[0-9A-Za-z_-]{35}`},

		// Generic
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`},
		{
			ID:       "bearer-token",
			Pattern:  `(?i)bearer\s+[A-Za-z0-9._~+/-]{20,}=*`,
			Keywords: []string{"bearer"},
		},
		{
			ID:       "generic-api-key",
			Pattern:  `(?i)(?:api[_-]?key|apikey|access[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords: []string{"key", "token"},
		},
		{
			ID:       "generic-password",
			Pattern:  `(?i)(?:password|passwd|pwd|secret)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords: []string{"pass", "pwd", "secret"},
		},
		{
			ID:      "connection-string",
			Pattern: `(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@[^\s]+`,
		},
	}
}
