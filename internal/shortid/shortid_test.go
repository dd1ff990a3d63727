package shortid_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/portal-session-server/internal/shortid"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/stretchr/testify/require"
)

func session(t *testing.T, raw string) sessions.TokenData {
	t.Helper()
	d, err := sessions.ParseTokenData([]byte(raw))
	require.NoError(t, err)
	return d
}

func TestGenerate_Deterministic(t *testing.T) {
	a := session(t, `{"orgId":"org","tenantId":"t","environment":"test","exp":1893456000,"patientId":"p","careflowId":"c"}`)
	b := session(t, `{"careflowId":"c","patientId":"p","exp":1893456000,"environment":"test","tenantId":"t","orgId":"org"}`)

	idA, err := shortid.Generate(a, shortid.DefaultLength)
	require.NoError(t, err)
	idB, err := shortid.Generate(b, shortid.DefaultLength)
	require.NoError(t, err)

	require.Len(t, idA, 12)
	require.Equal(t, idA, idB)
}

func TestGenerate_DefaultsAreCanonical(t *testing.T) {
	explicit := session(t, `{"orgId":"org","tenantId":"t","environment":"test","exp":10,"state":"created","createdAt":0}`)
	implicit := sessions.TokenData{OrgID: "org", TenantID: "t", Environment: sessions.EnvironmentTest, Exp: 10}

	a, err := shortid.Generate(explicit, 16)
	require.NoError(t, err)
	b, err := shortid.Generate(implicit, 16)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestGenerate_FieldChangesChangeID(t *testing.T) {
	base := session(t, `{"orgId":"org","tenantId":"t","environment":"test","exp":10}`)
	baseID, err := shortid.Generate(base, shortid.DefaultLength)
	require.NoError(t, err)

	mutations := map[string]func(d *sessions.TokenData){
		"orgId":       func(d *sessions.TokenData) { d.OrgID = "org2" },
		"tenantId":    func(d *sessions.TokenData) { d.TenantID = "t2" },
		"environment": func(d *sessions.TokenData) { d.Environment = sessions.EnvironmentSandbox },
		"exp":         func(d *sessions.TokenData) { d.Exp = 11 },
		"createdAt":   func(d *sessions.TokenData) { d.CreatedAt = 1 },
		"trackId":     func(d *sessions.TokenData) { d.TrackID = "track" },
		"careflowData": func(d *sessions.TokenData) {
			d.CareflowData = &sessions.CareflowData{ID: "cf", ReleaseID: "r"}
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			d := base.Clone()
			mutate(&d)
			id, err := shortid.Generate(d, shortid.DefaultLength)
			require.NoError(t, err)
			require.NotEqual(t, baseID, id)
		})
	}
}

func TestGenerate_PrefixStable(t *testing.T) {
	d := session(t, `{"orgId":"org","tenantId":"t","environment":"test","exp":1893456000}`)

	id8, err := shortid.Generate(d, 8)
	require.NoError(t, err)
	id12, err := shortid.Generate(d, 12)
	require.NoError(t, err)
	id20, err := shortid.Generate(d, 20)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(id20, id12))
	require.True(t, strings.HasPrefix(id12, id8))
}

func TestGenerate_Alphabet(t *testing.T) {
	d := session(t, `{"orgId":"org","tenantId":"t","environment":"test","exp":1893456000}`)
	id, err := shortid.Generate(d, 30)
	require.NoError(t, err)
	for _, r := range id {
		require.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'), "unexpected rune %q", r)
	}
}

func TestGenerate_InvalidLength(t *testing.T) {
	d := session(t, `{"orgId":"org","tenantId":"t","environment":"test","exp":10}`)
	_, err := shortid.Generate(d, 0)
	require.Error(t, err)
	_, err = shortid.Generate(d, 500)
	require.Error(t, err)
}
