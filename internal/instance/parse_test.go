package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	worldID = "wrld_11111111-2222-3333-4444-555555555555"
	userID  = "usr_11111111-2222-3333-4444-555555555555"
	nonce   = "abcdef01-2345-6789-abcd-ef0123456789"
)

func TestParse_CompactToken(t *testing.T) {
	d, ok := Parse(worldID + ":12345~public~region(eu)~nonce(" + nonce + ")")
	require.True(t, ok)

	assert.Equal(t, worldID, d.WorldID)
	assert.Equal(t, "12345~public~region(eu)~nonce("+nonce+")", d.InstanceID)
	assert.Equal(t, "12345", d.InstanceNumber)
	assert.Equal(t, "public", d.InstanceTypeKey)
	assert.Equal(t, "Public", d.InstanceType)
	assert.Equal(t, "eu", d.RegionKey)
	assert.Equal(t, "Europe", d.Region)
	assert.Equal(t, nonce, d.Nonce)
	assert.Empty(t, d.OwnerID)
}

func TestParse_FreeTextIsNotAnInstance(t *testing.T) {
	for _, in := range []string{"not a url or id", "", "   ", "hello!", "https://vrchat.com/home"} {
		_, ok := Parse(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestParse_GroupOwnerWithoutWorld(t *testing.T) {
	d, ok := Parse("12345~group(" + userID + ")")
	require.True(t, ok)

	assert.Empty(t, d.WorldID)
	assert.Equal(t, "12345", d.InstanceNumber)
	assert.Equal(t, "group", d.InstanceTypeKey)
	assert.Equal(t, "Group", d.InstanceType)
	assert.Equal(t, userID, d.OwnerID)
	assert.Empty(t, d.FullInstance)
}

func TestParse_Defaults(t *testing.T) {
	d, ok := Parse("98765")
	require.True(t, ok)
	assert.Equal(t, "public", d.InstanceTypeKey)
	assert.Equal(t, "us", d.RegionKey)
	assert.Equal(t, "US West", d.Region)
}

func TestParse_SegmentsAreOrderIndependent(t *testing.T) {
	a, ok := Parse("1~region(jp)~friends+(" + userID + ")~someFutureField(x)")
	require.True(t, ok)
	b, ok := Parse("1~someFutureField(x)~friends+(" + userID + ")~region(jp)")
	require.True(t, ok)

	assert.Equal(t, "friends+", a.InstanceTypeKey)
	assert.Equal(t, "Friends+", a.InstanceType)
	assert.Equal(t, "Japan", a.Region)
	assert.Equal(t, a.InstanceTypeKey, b.InstanceTypeKey)
	assert.Equal(t, a.RegionKey, b.RegionKey)
	assert.Equal(t, a.OwnerID, b.OwnerID)
}

func TestParse_UnknownRegionFallsBackToUpper(t *testing.T) {
	d, ok := Parse("1~region(xx)")
	require.True(t, ok)
	assert.Equal(t, "xx", d.RegionKey)
	assert.Equal(t, "XX", d.Region)
}

func TestParse_LaunchURL(t *testing.T) {
	d, ok := Parse("https://vrchat.com/home/launch?worldId=" + worldID + "&instanceId=42~invite%2B~region(use)")
	require.True(t, ok)

	assert.Equal(t, worldID, d.WorldID)
	assert.Equal(t, "42~invite+~region(use)", d.InstanceID)
	assert.Equal(t, "invite+", d.InstanceTypeKey)
	assert.Equal(t, "Invite+", d.InstanceType)
	assert.Equal(t, "US East", d.Region)
}

func TestParse_WorldPathURL(t *testing.T) {
	d, ok := Parse("https://vrchat.com/home/world/" + worldID + "/info")
	require.True(t, ok)
	assert.Equal(t, worldID, d.WorldID)
	assert.Empty(t, d.InstanceID)
	assert.Empty(t, d.FullInstance)
}

func TestParse_WorldOnlyToken(t *testing.T) {
	d, ok := Parse(worldID)
	require.True(t, ok)
	assert.Equal(t, worldID, d.WorldID)
	assert.Empty(t, d.InstanceID)
}

func TestParse_FullInstanceRoundTrip(t *testing.T) {
	inputs := []string{
		worldID + ":1",
		worldID + ":777~groupPublic~region(eu)",
		"http://vrchat.com/home/launch?worldId=" + worldID + "&instanceId=5",
	}
	for _, in := range inputs {
		d, ok := Parse(in)
		require.True(t, ok, in)
		require.NotEmpty(t, d.WorldID, in)
		require.NotEmpty(t, d.InstanceID, in)
		assert.Equal(t, d.WorldID+":"+d.InstanceID, d.FullInstance, in)
	}
}

func TestParse_MalformedURL(t *testing.T) {
	_, ok := Parse("http://%zz")
	assert.False(t, ok)
}
