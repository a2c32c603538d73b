package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		params Params
		want   string
	}{
		{"colon_key", "Hello {{name}}", Params{{":name", "Bo"}}, "Hello Bo"},
		{"plain_key", "User {{id}} found", Params{{"id", "42"}}, "User 42 found"},
		{"every_occurrence", "{{id}}-{{id}}", Params{{":id", "7"}}, "7-7"},
		{"nil_params", "hello {{id}}", nil, "hello {{id}}"},
		{"empty_body", "", Params{{":id", "42"}}, ""},
		{"unknown_token_kept", "{{other}}", Params{{":id", "1"}}, "{{other}}"},
		{"in_param_order", "{{a}} {{b}}", Params{{":a", "{{b}}"}, {":b", "x"}}, "x x"},
		{"reversed_param_order", "{{a}} {{b}}", Params{{":b", "{{a}}"}, {":a", "x"}}, "x x"},
		{"single_pass_per_param", "{{a}}", Params{{":a", "{{a}}{{a}}"}}, "{{a}}{{a}}"},
		{"regex_chars_literal", "v={{q}}", Params{{":q", "$1.*"}}, "v=$1.*"},
		{"last_duplicate_wins", "{{id}}", Params{{":id", "1"}, {"id", "2"}}, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.body, tt.params))
		})
	}
}
