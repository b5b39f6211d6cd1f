package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogql/neogql"
)

func TestIsRef(t *testing.T) {
	t.Parallel()
	assert.True(t, IsRef("$jwt.sub"))
	assert.True(t, IsRef("$context.tenant"))
	assert.False(t, IsRef("plain"))
	assert.False(t, IsRef(42))
	assert.False(t, IsRef(nil))
}

func TestPluck(t *testing.T) {
	t.Parallel()
	actx := &Context{
		Claims: Claims{
			"sub":               "u1",
			"myapp.example.com": map[string]any{"tenant": "acme"},
		},
		Values: map[string]any{"requestID": "r-9"},
	}

	v, ok := actx.Pluck("$jwt.sub")
	require.True(t, ok)
	assert.Equal(t, "u1", v)

	v, ok = actx.Pluck(`$jwt.myapp\.example\.com.tenant`)
	require.True(t, ok)
	assert.Equal(t, "acme", v)

	v, ok = actx.Pluck("$context.requestID")
	require.True(t, ok)
	assert.Equal(t, "r-9", v)

	_, ok = actx.Pluck("$jwt.missing")
	assert.False(t, ok)
	_, ok = actx.Pluck("$jwt.sub.deeper")
	assert.False(t, ok)
	_, ok = (*Context)(nil).Pluck("$jwt.sub")
	assert.False(t, ok)
}

func TestAuthParam(t *testing.T) {
	t.Parallel()

	actx := &Context{Claims: Claims{"sub": "u1", "roles": []any{"admin", "user"}}}
	param := actx.AuthParam("")
	assert.Equal(t, true, param["isAuthenticated"])
	assert.Equal(t, []string{"admin", "user"}, param["roles"])
	assert.Equal(t, map[string]any{"sub": "u1", "roles": []any{"admin", "user"}}, param["jwt"])

	anon := (*Context)(nil).AuthParam("")
	assert.Equal(t, false, anon["isAuthenticated"])
	assert.Empty(t, anon["roles"])
	_, hasJWT := anon["jwt"]
	assert.False(t, hasJWT)
}

func TestDecodeBearerVerified(t *testing.T) {
	t.Parallel()
	secret := "s3cret"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "u1",
		"roles": []any{"admin"},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	claims, err := DecodeBearer("Bearer "+token, neogql.JWTConfig{Secret: secret})
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])

	_, err = DecodeBearer("Bearer "+token, neogql.JWTConfig{Secret: "wrong"})
	assert.Error(t, err)
}

func TestDecodeBearerNoVerify(t *testing.T) {
	t.Parallel()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)

	claims, err := DecodeBearer(token, neogql.JWTConfig{NoVerify: true})
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])
}

func TestDecodeBearerEmpty(t *testing.T) {
	t.Parallel()
	_, err := DecodeBearer("", neogql.JWTConfig{NoVerify: true})
	assert.Error(t, err)
	_, err = DecodeBearer("Bearer ", neogql.JWTConfig{NoVerify: true})
	assert.Error(t, err)
}
