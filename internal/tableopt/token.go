package tableopt

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrBadToken 表示续传令牌无法解析。
var ErrBadToken = errors.New("tableopt: malformed continuation token")

// tokenSep 分隔令牌中的两个 base64 段。
// '.' 不在 URL-safe base64 字母表中，可安全作为分隔符。
const tokenSep = "."

// EncodeToken 将一个 (partitionKey, rowKey) 游标编码为不透明的续传令牌。
//
// 令牌格式为 base64url(pk) + "." + base64url(rk)。两段分别编码，
// 因此键内容可以包含任意字节。
func EncodeToken(partitionKey, rowKey string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(partitionKey)) + tokenSep + enc.EncodeToString([]byte(rowKey))
}

// DecodeToken 解析 EncodeToken 生成的续传令牌。
// 无法解析时返回 ErrBadToken。
func DecodeToken(token string) (partitionKey, rowKey string, err error) {
	head, tail, ok := strings.Cut(token, tokenSep)
	if !ok {
		return "", "", ErrBadToken
	}

	enc := base64.RawURLEncoding
	pk, err := enc.DecodeString(head)
	if err != nil {
		return "", "", ErrBadToken
	}
	rk, err := enc.DecodeString(tail)
	if err != nil {
		return "", "", ErrBadToken
	}
	return string(pk), string(rk), nil
}
