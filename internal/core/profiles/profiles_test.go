package profiles

import (
	"testing"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesRegistered(t *testing.T) {
	for _, key := range []string{"standard", "accounting"} {
		p, ok := core.GetProfile(key)
		require.True(t, ok, "profile %q not registered", key)
		assert.NotEmpty(t, p.SampleRows)
		for _, row := range p.SampleRows {
			assert.Len(t, row, len(p.Headers), "profile %q sample row width", key)
		}
	}
}

// Every template must import cleanly: name and quantity resolve from its
// own headers.
func TestProfilesResolveOnImport(t *testing.T) {
	for _, p := range core.Profiles() {
		t.Run(p.Key, func(t *testing.T) {
			cols, err := core.ResolveColumns(p.Headers)
			require.NoError(t, err)

			name, ok := cols.Column(core.RoleName)
			require.True(t, ok)
			assert.Equal(t, "Product Name", name.Label)

			_, ok = cols.Column(core.RoleQuantity)
			assert.True(t, ok)
		})
	}
}
