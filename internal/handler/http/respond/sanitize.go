package respond

import (
	"regexp"
)

var (
	// the Anthropic pattern runs first; it is the more specific one
	anthropicKeyPattern = regexp.MustCompile(`sk-ant-[a-zA-Z0-9-_]+`)
	openaiKeyPattern    = regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`)
	bearerPattern       = regexp.MustCompile(`(?i)bearer [a-zA-Z0-9._~+/=-]+`)
	discogsTokenPattern = regexp.MustCompile(`token=[^&\s]+`)
	dsnPasswordPattern  = regexp.MustCompile(`://([^:/]+):([^@]+)@`)
)

// SanitizeError returns the message of err with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = anthropicKeyPattern.ReplaceAllString(msg, "sk-ant-****")
	msg = openaiKeyPattern.ReplaceAllString(msg, "sk-****")
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	msg = discogsTokenPattern.ReplaceAllString(msg, "token=****")
	msg = dsnPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
