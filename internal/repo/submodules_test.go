package repo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PinkPanter/gitlock/internal/repo"
	"github.com/PinkPanter/gitlock/pkg/errclass"
)

func TestParseSubmodules(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   []string
		anomal bool
	}{
		{name: "empty", input: "", want: nil},
		{
			name:  "get-regexp output",
			input: "submodule.a.path libs/a\nsubmodule.b.path libs/b\n",
			want:  []string{"libs/a", "libs/b"},
		},
		{
			name: "stanzas",
			input: "[submodule \"a\"]\n\tpath = libs/a\n\turl = https://example.com/a.git\n\n" +
				"[submodule \"b\"]\n\tpath = libs/b\n\tbranch = main\n",
			want: []string{"libs/a", "libs/b"},
		},
		{
			name:  "crlf and quotes",
			input: "submodule.a.path \"Assets/My Art\"\r\n",
			want:  []string{"Assets/My Art"},
		},
		{
			name:   "anomaly keeps trailing text as one path",
			input:  "submodule.a.path libs/a\nweird/trailing\n",
			want:   []string{"libs/a", "weird/trailing"},
			anomal: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ParseSubmodules(tt.input)
			if tt.anomal {
				require.ErrorIs(t, err, errclass.ErrParseAnomaly)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
