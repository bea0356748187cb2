package id_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/id"
)

func TestIDGeneration(t *testing.T) {
	a1 := id.NewAgentID()
	a2 := id.NewAgentID()
	assert.NotEqual(t, a1.String(), a2.String())
}

func TestIDTextRoundTrip(t *testing.T) {
	a := id.NewAgentID()
	text, err := a.MarshalText()
	require.NoError(t, err)

	var a2 id.AgentID
	require.NoError(t, a2.UnmarshalText(text))
	assert.True(t, a.Equal(a2))
}

func TestRecordIDCarriesPrefix(t *testing.T) {
	a := id.NewAgentID()
	assert.Contains(t, a.RecordID(), "agent:")
}

func TestDifferentIDKindsAreDistinctTypes(t *testing.T) {
	agentID := id.NewAgentID()
	userID, err := id.UserIDFromString(agentID.String())
	require.NoError(t, err)
	// Same underlying string is legal across kinds; the Go type system,
	// not the string value, is what prevents an AgentID being passed where
	// a UserID is expected.
	assert.Equal(t, agentID.String(), userID.String())
}

func TestMessageIDGeneration(t *testing.T) {
	m1 := id.NewMessageID()
	m2 := id.NewMessageID()
	assert.NotEqual(t, m1.String(), m2.String())
	assert.True(t, m1.LooksGenerated())
}

func TestMessageIDFromProvider(t *testing.T) {
	m := id.MessageIDFromProvider("chatcmpl-abc123")
	assert.False(t, m.LooksGenerated())
	assert.Equal(t, "chatcmpl-abc123", m.String())
}

func TestFromStringRejectsEmpty(t *testing.T) {
	_, err := id.AgentIDFromString("")
	require.Error(t, err)
}

func TestNilID(t *testing.T) {
	var a id.AgentID
	assert.True(t, a.IsNil())
	assert.False(t, id.NewAgentID().IsNil())
}
