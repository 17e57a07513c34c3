package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mautops/approval-router/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://sso.example.com/realms/corp"

// jwksServer 提供单个 RSA 公钥的 JWKS 端点
func jwksServer(t *testing.T, kid string, key *rsa.PublicKey) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": kid,
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

// TestKeycloakTokenValidator_Authenticate 测试 Bearer Token 认证
func TestKeycloakTokenValidator_Authenticate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := jwksServer(t, "k1", &key.PublicKey)
	validator := auth.NewKeycloakTokenValidator(testIssuer, server.URL, "employee_id")
	assert.Equal(t, testIssuer, validator.Issuer())

	token := signToken(t, key, "k1", jwt.MapClaims{
		"iss":                testIssuer,
		"exp":                time.Now().Add(time.Hour).Unix(),
		"preferred_username": "zhangsan",
		"name":               "张三",
		"employee_id":        "21",
		"realm_access":       map[string]interface{}{"roles": []string{"approval-admin"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	identity, err := validator.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, int64(21), identity.UserID)
	assert.Equal(t, "zhangsan", identity.Username)
	assert.Equal(t, "张三", identity.Name)
	assert.Equal(t, []string{"approval-admin"}, identity.Roles)

	// 浏览器长连接使用 token 查询参数
	req = httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	identity, err = validator.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, int64(21), identity.UserID)
}

// TestKeycloakTokenValidator_Rejects 测试无效 Token
func TestKeycloakTokenValidator_Rejects(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := jwksServer(t, "k1", &key.PublicKey)
	validator := auth.NewKeycloakTokenValidator(testIssuer, server.URL, "")

	valid := jwt.MapClaims{"iss": testIssuer, "exp": time.Now().Add(time.Hour).Unix(), "user_id": 5}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", signToken(t, key, "k1", jwt.MapClaims{"iss": testIssuer, "exp": time.Now().Add(-time.Hour).Unix(), "user_id": 5})},
		{"wrong issuer", signToken(t, key, "k1", jwt.MapClaims{"iss": "https://evil", "exp": time.Now().Add(time.Hour).Unix(), "user_id": 5})},
		{"no expiry", signToken(t, key, "k1", jwt.MapClaims{"iss": testIssuer, "user_id": 5})},
		{"wrong key", signToken(t, other, "k1", valid)},
		{"unknown kid", signToken(t, key, "k2", valid)},
		{"missing user id", signToken(t, key, "k1", jwt.MapClaims{"iss": testIssuer, "exp": time.Now().Add(time.Hour).Unix()})},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			_, err := validator.Authenticate(req)
			assert.Error(t, err)
		})
	}

	_, err = validator.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)

	// 签名正确时数字声明同样可用
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, "k1", valid))
	identity, err := validator.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, int64(5), identity.UserID)
}
