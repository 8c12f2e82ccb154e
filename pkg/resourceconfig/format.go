package resourceconfig

import "strings"

// Placeholder tokens recognized by FormatRESTParameters.
const (
	placeholderHost   = "${rest_hostname}"
	placeholderPort   = "${rest_port}"
	placeholderSchema = "${rest_schema}"
	placeholderJobID  = "${job_id}"
)

// FormatRESTParameters performs literal substitution of the four known
// placeholders in template, leaving any other text untouched.
func FormatRESTParameters(template, host, port, schema, jobID string) string {
	replacer := strings.NewReplacer(
		placeholderHost, host,
		placeholderPort, port,
		placeholderSchema, schema,
		placeholderJobID, jobID,
	)
	return replacer.Replace(template)
}
