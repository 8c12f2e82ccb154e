package resourceconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatRESTParameters(t *testing.T) {
	cases := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "all placeholders",
			template: "--rest ${rest_hostname}:${rest_port}:${rest_schema} --jobid=${job_id}",
			want:     "--rest localhost:3000:schema --jobid=42",
		},
		{
			name:     "no placeholders",
			template: "--verbose --extra",
			want:     "--verbose --extra",
		},
		{
			name:     "repeated placeholder",
			template: "${rest_hostname} again ${rest_hostname}",
			want:     "localhost again localhost",
		},
		{
			name:     "empty template",
			template: "",
			want:     "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatRESTParameters(tc.template, "localhost", "3000", "schema", "42")
			assert.Equal(t, tc.want, got)
		})
	}
}
