package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeWritesMilliseconds(t *testing.T) {
	raw, err := json.Marshal(NewTime(time.Date(2024, 6, 1, 10, 11, 12, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, `"2024-06-01T10:11:12.000Z"`, string(raw))

	local := time.Date(2024, 6, 1, 12, 11, 12, 345_678_000, time.FixedZone("CEST", 2*3600))
	raw, err = json.Marshal(NewTime(local))
	require.NoError(t, err)
	assert.Equal(t, `"2024-06-01T10:11:12.345Z"`, string(raw))
}

func TestTimeKeepsNonCanonicalValues(t *testing.T) {
	for _, stored := range []string{`"2024-01-01"`, `"2024-01-01T00:00:00Z"`, `"2024-01-01T02:00:00+02:00"`, `"yesterday"`, `1704067200000`} {
		var ts Time
		require.NoError(t, json.Unmarshal([]byte(stored), &ts), stored)
		assert.Equal(t, stored, ts.Raw(), stored)

		raw, err := json.Marshal(ts)
		require.NoError(t, err)
		assert.Equal(t, stored, string(raw), stored)
	}

	var ts Time
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-01T02:00:00+02:00"`), &ts))
	assert.True(t, ts.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAccountKeepsUnknownAndMistypedAttributes(t *testing.T) {
	stored := `{"username":"bob","password":"pw","isAdmin":"yes","status":"pending","joined":"2024-06-01T10:11:12.000Z","email":"bob@example.com","tags":["a"]}`

	var account Account
	require.NoError(t, json.Unmarshal([]byte(stored), &account))
	assert.Equal(t, "bob", account.Username)
	assert.False(t, account.IsAdmin)
	assert.Equal(t, AccountStatusPending, account.Status)
	assert.JSONEq(t, `"bob@example.com"`, string(account.Extra["email"]))
	assert.JSONEq(t, `"yes"`, string(account.Extra["isAdmin"]))

	raw, err := json.Marshal(account)
	require.NoError(t, err)
	assert.Equal(t, stored, string(raw))
}

func TestAccountRecordThatIsNotAnObject(t *testing.T) {
	var accounts []Account
	require.NoError(t, json.Unmarshal([]byte(`[null,"junk",{"username":"bob","password":"pw","isAdmin":false,"status":"pending","joined":"2024-06-01T10:11:12.000Z"}]`), &accounts))
	require.Len(t, accounts, 3)
	assert.Empty(t, accounts[0].Username)
	assert.Equal(t, "bob", accounts[2].Username)
	assert.Equal(t, 3, ComputeStats(accounts).Total)

	raw, err := json.Marshal(accounts[:2])
	require.NoError(t, err)
	assert.Equal(t, `[null,"junk"]`, string(raw))
}

func TestRestoreDropsMistypedRevocationFields(t *testing.T) {
	accounts := []Account{{
		Username: "bob",
		Status:   AccountStatusRevoked,
		Extra:    map[string]json.RawMessage{"revocationReason": json.RawMessage(`42`), "email": json.RawMessage(`"b@x"`)},
	}}

	restored, err := Restore(accounts, "bob")
	require.NoError(t, err)
	assert.NotContains(t, restored[0].Extra, "revocationReason")
	assert.Contains(t, restored[0].Extra, "email")
	assert.Contains(t, accounts[0].Extra, "revocationReason", "input must not change")
}
