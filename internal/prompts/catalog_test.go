package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonCatalog = `[
  {"name": "Hitesh", "role": "Teacher", "content": "You are Hitesh Choudhary", "voice": "Hinglish", "color": "orange"},
  {"name": "Piyush", "content": "You are Piyush Garg"}
]`

const yamlCatalog = `
- name: Hitesh
  content: You are Hitesh Choudhary
  avatar: /hitesh.png
- name: Piyush
  content: You are Piyush Garg
  voice: english
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	t.Parallel()
	c, err := Load(writeFile(t, "prompts.json", jsonCatalog))
	require.NoError(t, err)

	p, err := c.Lookup("Hitesh")
	require.NoError(t, err)
	assert.Equal(t, "You are Hitesh Choudhary", p.Content)
	assert.Equal(t, "orange", p.Color)
	assert.Equal(t, []string{"Hitesh", "Piyush"}, names(c.List()))
	assert.Equal(t, map[string]string{"Hitesh": "hinglish"}, c.Voices())
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()
	c, err := Load(writeFile(t, "prompts.yaml", yamlCatalog))
	require.NoError(t, err)

	p, err := c.Lookup("Hitesh")
	require.NoError(t, err)
	assert.Equal(t, "/hitesh.png", p.Avatar)
	assert.Equal(t, map[string]string{"Piyush": "english"}, c.Voices())
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "bad json", file: "p.json", body: `{`},
		{name: "bad yaml", file: "p.yml", body: "- name: [unclosed"},
		{name: "unknown ext", file: "p.toml", body: ``},
		{name: "missing name", file: "p.json", body: `[{"content":"x"}]`},
		{name: "missing content", file: "p.json", body: `[{"name":"x"}]`},
		{name: "duplicate", file: "p.json", body: `[{"name":"x","content":"a"},{"name":"x","content":"b"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeFile(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLookup_NotFound(t *testing.T) {
	t.Parallel()
	c, err := Parse([]byte(jsonCatalog), ".json")
	require.NoError(t, err)

	_, err = c.Lookup("hitesh")
	assert.ErrorIs(t, err, ErrNotFound)

	var nilCatalog *Catalog
	_, err = nilCatalog.Lookup("Hitesh")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, nilCatalog.List())
}

func TestList_ReturnsCopy(t *testing.T) {
	t.Parallel()
	c, err := Parse([]byte(jsonCatalog), ".json")
	require.NoError(t, err)

	list := c.List()
	list[0].Content = "mutated"

	p, _ := c.Lookup("Hitesh")
	assert.Equal(t, "You are Hitesh Choudhary", p.Content)
}

func names(ps []Persona) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}
