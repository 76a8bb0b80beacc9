// auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
)

const tokenIssuer = "metaverse-login"

var (
	ErrInvalidToken = errors.New("invalid credential token")
	ErrExpiredToken = errors.New("credential token expired")
)

// Verifier 校验客户端随 join 提交的凭证并解析出用户身份
type Verifier interface {
	Verify(credential string) (userID string, err error)
}

// Profiles 按用户身份查询资料（显示名、形象）
type Profiles interface {
	Lookup(userID string) (models.UserProfile, error)
}

type tokenClaims struct {
	Sub string `json:"sub"`
	Iss string `json:"iss"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

// TokenVerifier 校验 "payload.signature" 形式的 HMAC-SHA256 令牌。
// 令牌由登录服务签发，这里只做验签与声明检查。
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (v *TokenVerifier) Verify(credential string) (string, error) {
	parts := strings.Split(strings.TrimSpace(credential), ".")
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}
	payloadEnc, sig := parts[0], parts[1]

	expected := signPayload(payloadEnc, v.secret)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(payloadEnc)
	if err != nil {
		return "", fmt.Errorf("decode token payload: %w", err)
	}

	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("parse token claims: %w", err)
	}
	if strings.TrimSpace(claims.Sub) == "" {
		return "", ErrInvalidToken
	}
	if claims.Iss != tokenIssuer {
		return "", ErrInvalidToken
	}

	now := v.now().UTC().Unix()
	if claims.Iat > now+60 {
		return "", ErrInvalidToken
	}
	if claims.Exp > 0 && now > claims.Exp {
		return "", ErrExpiredToken
	}
	return claims.Sub, nil
}

// IssueToken 用同一密钥签发令牌。服务器本体不调用，供参考客户端
// 与测试构造合法凭证。
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		Sub: userID,
		Iss: tokenIssuer,
		Iat: now.Unix(),
		Exp: now.Add(ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	payloadEnc := base64.RawURLEncoding.EncodeToString(payload)
	return payloadEnc + "." + signPayload(payloadEnc, []byte(secret)), nil
}

func signPayload(payloadEnc string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payloadEnc))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
