package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRulesFile(t *testing.T) {
	path := writeRules(t, `rules:
  - priority: 10
    patterns: ["uber", "99app"]
    group: Transporte
    subgroup: Aplicativo
    expense_type: variável
  - priority: 20
    patterns: ["ifood"]
    group: Alimentação
`)

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, 10, rules[0].Priority)
	assert.Equal(t, []string{"uber", "99app"}, rules[0].Patterns)
	assert.Equal(t, "Transporte", rules[0].Group)
	assert.Equal(t, "variável", rules[0].ExpenseType)
	assert.True(t, rules[0].IsActive)

	assert.Empty(t, rules[1].Subgroup)
}

func TestLoadRulesFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no patterns", "rules:\n  - priority: 10\n    group: Transporte\n"},
		{"no group", "rules:\n  - priority: 10\n    patterns: [\"uber\"]\n"},
		{"not yaml", "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRules(t, tt.content)
			_, err := LoadRulesFile(path)
			require.Error(t, err)
		})
	}
}

func TestLoadRulesFile_Missing(t *testing.T) {
	_, err := LoadRulesFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
