package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestHashAndVerify(t *testing.T) {
	encoded, err := HashWithParams("correct horse", fast)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, Verify("correct horse", encoded))
	assert.False(t, Verify("wrong horse", encoded))
}

func TestHashUsesFreshSalt(t *testing.T) {
	a, err := HashWithParams("same", fast)
	require.NoError(t, err)
	b, err := HashWithParams("same", fast)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$aGFzaA",
	} {
		assert.False(t, Verify("secret", encoded), encoded)
	}
}
