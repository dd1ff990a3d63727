package branding_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/portal-session-server/branding"
	"github.com/stretchr/testify/require"
)

func TestConfig_PassesThroughUnknownFields(t *testing.T) {
	var c branding.Config
	require.NoError(t, json.Unmarshal([]byte(`{"primaryColor":"#004ac2","hideLogo":true,"locales":["en","nl"]}`), &c))
	require.Equal(t, "#004ac2", c.PrimaryColor)
	require.Len(t, c.Extras, 2)
	require.JSONEq(t, `true`, string(c.Extras["hideLogo"]))

	out, err := json.Marshal(c)
	require.NoError(t, err)
	require.JSONEq(t, `{"primaryColor":"#004ac2","hideLogo":true,"locales":["en","nl"]}`, string(out))
}

func TestConfig_MarshalWithoutExtras(t *testing.T) {
	out, err := json.Marshal(branding.Config{LogoURL: "https://cdn.example.com/logo.svg"})
	require.NoError(t, err)
	require.JSONEq(t, `{"logoUrl":"https://cdn.example.com/logo.svg"}`, string(out))
}

func TestStatic(t *testing.T) {
	lookup := branding.NewStatic(map[string]branding.Config{
		"org-1": {PrimaryColor: "#ff0000"},
	})

	c, err := lookup.GetBrandingByOrgID(context.Background(), "org-1")
	require.NoError(t, err)
	require.Equal(t, "#ff0000", c.PrimaryColor)

	c, err = lookup.GetBrandingByOrgID(context.Background(), "org-2")
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "branding.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"org-1":{"fontFamily":"Inter","tagline":"hi"}}`), 0o600))

	lookup := branding.NewFromFile(path)
	c, err := lookup.GetBrandingByOrgID(context.Background(), "org-1")
	require.NoError(t, err)
	require.Equal(t, "Inter", c.FontFamily)
	require.Contains(t, c.Extras, "tagline")

	// Seeding runs once; later edits to the file are not picked up.
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	c, err = lookup.GetBrandingByOrgID(context.Background(), "org-1")
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestNewFromFile_Errors(t *testing.T) {
	_, err := branding.NewFromFile(filepath.Join(t.TempDir(), "missing.json")).GetBrandingByOrgID(context.Background(), "org-1")
	require.Error(t, err)

	c, err := branding.NewFromFile("").GetBrandingByOrgID(context.Background(), "org-1")
	require.NoError(t, err)
	require.Nil(t, c)
}
