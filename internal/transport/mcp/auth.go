package mcp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	headerClientID  = "x-client-id"
	headerTS        = "x-ts"
	headerNonce     = "x-nonce"
	headerSignature = "x-signature"

	defaultSkew = 5 * time.Minute
)

// canonicalString is what clients sign: unix-millis timestamp, method, path,
// client id, nonce, then the raw body, joined by newlines.
func canonicalString(ts, method, path, clientID, nonce string, body []byte) string {
	return ts + "\n" + strings.ToUpper(method) + "\n" + path + "\n" +
		strings.TrimSpace(clientID) + "\n" + strings.TrimSpace(nonce) + "\n" + string(body)
}

func signHMAC(secret []byte, canonical string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

type authResult struct {
	ClientID  string
	Signature string
	Status    int
	Message   string
}

func verifyHMAC(r *http.Request, body, secret []byte, now time.Time, skew time.Duration) authResult {
	clientID := strings.TrimSpace(r.Header.Get(headerClientID))
	tsStr := strings.TrimSpace(r.Header.Get(headerTS))
	nonce := strings.TrimSpace(r.Header.Get(headerNonce))
	sig := strings.ToLower(strings.TrimSpace(r.Header.Get(headerSignature)))
	switch {
	case clientID == "":
		return authResult{Status: http.StatusUnauthorized, Message: "missing " + headerClientID}
	case tsStr == "":
		return authResult{Status: http.StatusUnauthorized, Message: "missing " + headerTS}
	case nonce == "":
		return authResult{Status: http.StatusUnauthorized, Message: "missing " + headerNonce}
	case sig == "":
		return authResult{Status: http.StatusUnauthorized, Message: "missing " + headerSignature}
	}

	tsMS, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return authResult{Status: http.StatusUnauthorized, Message: "bad " + headerTS}
	}
	if d := now.UnixMilli() - tsMS; d > skew.Milliseconds() || d < -skew.Milliseconds() {
		return authResult{Status: http.StatusUnauthorized, Message: headerTS + " outside window"}
	}

	want := signHMAC(secret, canonicalString(tsStr, r.Method, r.URL.Path, clientID, nonce, body))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return authResult{Status: http.StatusUnauthorized, Message: "bad signature"}
	}
	return authResult{ClientID: clientID, Signature: sig}
}

// replayGuard remembers accepted signatures until they fall out of the
// timestamp window.
type replayGuard struct {
	mu        sync.Mutex
	seen      map[string]int64
	ttl       time.Duration
	lastPrune int64
}

func newReplayGuard(ttl time.Duration) *replayGuard {
	if ttl <= 0 {
		ttl = 2 * defaultSkew
	}
	return &replayGuard{seen: map[string]int64{}, ttl: ttl}
}

func (g *replayGuard) allow(clientID, signature string, now time.Time) bool {
	key := clientID + "|" + signature
	nowMS := now.UnixMilli()

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.seen) > 4096 || nowMS-g.lastPrune > g.ttl.Milliseconds()/2 {
		for k, exp := range g.seen {
			if exp <= nowMS {
				delete(g.seen, k)
			}
		}
		g.lastPrune = nowMS
	}
	if exp, ok := g.seen[key]; ok && exp > nowMS {
		return false
	}
	if len(g.seen) >= 65536 {
		g.seen = map[string]int64{}
	}
	g.seen[key] = nowMS + g.ttl.Milliseconds()
	return true
}
