package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeycloakClaims Keycloak JWT 声明
type KeycloakClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// KeycloakTokenValidator Keycloak Token 验证器
type KeycloakTokenValidator struct {
	issuer      string
	jwksURL     string
	userIDClaim string
	jwksCache   *sync.Map
	httpClient  *http.Client
}

// NewKeycloakTokenValidator 创建 Keycloak Token 验证器
// jwksURL 为空时使用 issuer 下的标准证书地址,userIDClaim 为映射到目录用户 ID 的声明名
func NewKeycloakTokenValidator(issuer, jwksURL, userIDClaim string) *KeycloakTokenValidator {
	if jwksURL == "" {
		jwksURL = fmt.Sprintf("%s/protocol/openid-connect/certs", strings.TrimSuffix(issuer, "/"))
	}
	if userIDClaim == "" {
		userIDClaim = "user_id"
	}
	return &KeycloakTokenValidator{
		issuer:      issuer,
		jwksURL:     jwksURL,
		userIDClaim: userIDClaim,
		jwksCache:   &sync.Map{},
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Issuer 返回 Issuer URL
func (v *KeycloakTokenValidator) Issuer() string {
	return v.issuer
}

// ValidateToken 验证 Keycloak JWT Token
func (v *KeycloakTokenValidator) ValidateToken(tokenString string) (*KeycloakClaims, error) {
	claims := &KeycloakClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("missing kid in token header")
		}
		return v.GetPublicKey(kid)
	},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Authenticate 实现 Authenticator,从 Bearer Token 中解析身份
func (v *KeycloakTokenValidator) Authenticate(r *http.Request) (*Identity, error) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		return nil, ErrMissingCredentials
	}

	claims, err := v.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := v.userID(tokenString)
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID:   userID,
		Username: claims.PreferredUsername,
		Name:     claims.Name,
		Roles:    claims.RealmAccess.Roles,
	}, nil
}

// userID 读取目录用户 ID 声明,签名已在 ValidateToken 中校验
func (v *KeycloakTokenValidator) userID(tokenString string) (int64, error) {
	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, mapClaims); err != nil {
		return 0, fmt.Errorf("failed to parse claims: %w", err)
	}
	return ParseUserID(mapClaims[v.userIDClaim])
}

// ParseUserID 将声明值转换为用户 ID,支持数字和数字字符串
func ParseUserID(value interface{}) (int64, error) {
	switch val := value.(type) {
	case float64:
		if val <= 0 || val != float64(int64(val)) {
			return 0, fmt.Errorf("invalid user id: %v", val)
		}
		return int64(val), nil
	case json.Number:
		return positiveID(val.String())
	case string:
		return positiveID(val)
	case nil:
		return 0, errors.New("user id claim is missing")
	default:
		return 0, fmt.Errorf("unsupported user id type: %T", value)
	}
}

func positiveID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id: %q", s)
	}
	return id, nil
}

// GetPublicKey 获取公钥 (从 JWKS 或缓存)
func (v *KeycloakTokenValidator) GetPublicKey(kid string) (interface{}, error) {
	if cached, ok := v.jwksCache.Load(kid); ok {
		return cached, nil
	}

	resp, err := v.httpClient.Get(v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	for _, key := range jwks.Keys {
		if key.Kid != kid || key.Kty != "RSA" {
			continue
		}
		publicKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		v.jwksCache.Store(kid, publicKey)
		return publicKey, nil
	}

	return nil, fmt.Errorf("key not found in JWKS: %s", kid)
}

// parseRSAPublicKey 解析 RSA 公钥
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
