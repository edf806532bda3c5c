package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP はリクエスト元のIPアドレスを返す。
// trustProxyがtrueの場合はX-Forwarded-Forの先頭要素を優先する。
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
