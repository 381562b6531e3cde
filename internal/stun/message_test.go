package stun

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndValidateBindingRequest(t *testing.T) {
	req, err := BuildBindingRequest("REMOTE:LOCAL", 0x1122334455667788, true, false, 12345, "pass")
	require.NoError(t, err)
	require.True(t, IsStunShaped(req.Raw))

	lookup := func(username string) (string, bool) {
		if username == "REMOTE:LOCAL" {
			return "pass", true
		}
		return "", false
	}
	m, outcome := Validate(req.Raw, lookup)
	require.Equal(t, Success, outcome)
	require.NotNil(t, m)

	priority, ok := GetPriority(m)
	assert.True(t, ok)
	assert.Equal(t, uint32(12345), priority)

	tieBreaker, ok := ControllingTieBreaker(m)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x1122334455667788), tieBreaker)

	assert.False(t, HasUseCandidate(m))
}

func TestValidateRejectsBadCredentials(t *testing.T) {
	req, err := BuildBindingRequest("REMOTE:LOCAL", 42, true, false, 1, "pass")
	require.NoError(t, err)

	lookup := func(username string) (string, bool) { return "", false }
	_, outcome := Validate(req.Raw, lookup)
	assert.Equal(t, Unauthorized, outcome)
}

func TestValidateRejectsNonStunData(t *testing.T) {
	_, outcome := Validate([]byte("not a stun packet at all, just bytes"), nil)
	assert.Equal(t, NotStun, outcome)
}

func TestBindingResponseRoundTrip(t *testing.T) {
	req, err := BuildBindingRequest("u", 1, true, true, 1, "")
	require.NoError(t, err)
	assert.True(t, HasUseCandidate(req))

	resp, err := BuildBindingResponse(req.TransactionID, &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4321}, "", "")
	require.NoError(t, err)
	require.True(t, IsSuccess(resp))
	require.False(t, IsError(resp))

	ip, port, ok := GetXORMappedAddress(resp)
	require.True(t, ok)
	assert.True(t, ip.Equal(net.ParseIP("203.0.113.5")))
	assert.Equal(t, 4321, port)
}

func TestBindingErrorResponseCarriesCode(t *testing.T) {
	var txID TransactionID
	resp, err := BuildBindingErrorResponse(txID, 487, "Role Conflict")
	require.NoError(t, err)
	require.True(t, IsError(resp))

	code, ok := ErrorCode(resp)
	require.True(t, ok)
	assert.Equal(t, 487, code)
}

func TestBindingIndicationHasNoReplyExpected(t *testing.T) {
	ind, err := BuildBindingIndication()
	require.NoError(t, err)
	assert.True(t, IsStunShaped(ind.Raw))
	assert.False(t, IsSuccess(ind))
	assert.False(t, IsError(ind))
}
