package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VideoProvider 影音會議服務
//
// 核心只需要一個能力：為 (roomID, playerID) 取得不透明的存取權杖。
// 呼叫可能失敗，失敗時加入房間的流程整個中止。
type VideoProvider interface {
	IssueToken(ctx context.Context, roomID, playerID string) (string, error)
}

// VideoProviderFunc 讓普通函式滿足 VideoProvider
type VideoProviderFunc func(ctx context.Context, roomID, playerID string) (string, error)

// IssueToken 實作 VideoProvider
func (f VideoProviderFunc) IssueToken(ctx context.Context, roomID, playerID string) (string, error) {
	return f(ctx, roomID, playerID)
}

// VideoGrant 房間權限
type VideoGrant struct {
	Room string `json:"room"`
}

// VideoGrants access token 內的授權
type VideoGrants struct {
	Identity string     `json:"identity"`
	Video    VideoGrant `json:"video"`
}

// VideoClaims Twilio 風格的 access token claims
type VideoClaims struct {
	Grants VideoGrants `json:"grants"`
	jwt.RegisteredClaims
}

// JWTVideoProvider 在本地簽發 Twilio 相容的 access token
//
// 格式：HS256，header cty 為 "twilio-fpa;v=1"，iss 為 API key SID，
// sub 為 account SID，grants 內帶 identity 與房間名稱。
type JWTVideoProvider struct {
	accountSID   string
	apiKeySID    string
	apiKeySecret []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewJWTVideoProvider 創建影音 token 簽發器
func NewJWTVideoProvider(accountSID, apiKeySID, apiKeySecret string, ttl time.Duration) (*JWTVideoProvider, error) {
	if accountSID == "" || apiKeySID == "" || apiKeySecret == "" {
		return nil, fmt.Errorf("%w: 影音服務憑證不完整", ErrInvalidArgument)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTVideoProvider{
		accountSID:   accountSID,
		apiKeySID:    apiKeySID,
		apiKeySecret: []byte(apiKeySecret),
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// IssueToken 實作 VideoProvider
func (p *JWTVideoProvider) IssueToken(ctx context.Context, roomID, playerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := p.now()
	claims := VideoClaims{
		Grants: VideoGrants{
			Identity: playerID,
			Video:    VideoGrant{Room: roomID},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("%s-%d", p.apiKeySID, now.Unix()),
			Issuer:    p.apiKeySID,
			Subject:   p.accountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["cty"] = "twilio-fpa;v=1"

	signed, err := token.SignedString(p.apiKeySecret)
	if err != nil {
		return "", fmt.Errorf("簽發影音 token 失敗: %w", err)
	}
	return signed, nil
}

// Verify 驗證 token 並取回 claims
func (p *JWTVideoProvider) Verify(tokenString string) (*VideoClaims, error) {
	claims := &VideoClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.apiKeySecret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token not valid")
	}
	return claims, nil
}
