package auth

import (
	"bytes"
	"compress/zlib"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// Reasons reported when a session cannot be resolved.
const (
	ReasonNoSession     = "no session cookie"
	ReasonMalformed     = "malformed session credential"
	ReasonUndecodable   = "session payload is not decodable"
	ReasonMissingUserID = "session payload has no user_id"
)

// maxSessionPayload bounds the inflated size of a compressed session payload.
const maxSessionPayload = 64 << 10

// SessionIdentity is the outcome of reading a session credential.
// When Resolved is false UserID is empty and Reason says why.
type SessionIdentity struct {
	UserID   string
	Resolved bool
	Reason   string
}

// segmentParser only decodes base64url segments; nothing is verified.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// ParseSession reads the user id out of a signed-cookie session credential of
// the form "<payload>.<timestamp>.<signature>", where payload is base64url JSON
// carrying "user_id". A leading "." marks a zlib-compressed payload.
//
// The signature is NOT checked: the auth service that issued the cookie owns
// the signing key. ParseSession never panics on any input.
func ParseSession(credential string) SessionIdentity {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return unresolved(ReasonNoSession)
	}

	compressed := strings.HasPrefix(credential, ".")
	if compressed {
		credential = credential[1:]
	}

	parts := strings.Split(credential, ".")
	if len(parts) < 2 || parts[0] == "" {
		return unresolved(ReasonMalformed)
	}

	payload, err := segmentParser.DecodeSegment(parts[0])
	if err != nil {
		return unresolved(ReasonUndecodable)
	}

	if compressed {
		payload, err = inflate(payload)
		if err != nil {
			return unresolved(ReasonUndecodable)
		}
	}

	var claims struct {
		UserID json.RawMessage `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return unresolved(ReasonUndecodable)
	}

	userID, ok := userIDFromRaw(claims.UserID)
	if !ok {
		return unresolved(ReasonMissingUserID)
	}

	return SessionIdentity{UserID: userID, Resolved: true}
}

func unresolved(reason string) SessionIdentity {
	return SessionIdentity{Reason: reason}
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, maxSessionPayload))
}

// userIDFromRaw accepts a JSON string or an integral JSON number.
func userIDFromRaw(raw json.RawMessage) (string, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", false
	}

	if strings.HasPrefix(s, `"`) {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", false
		}
		id = strings.TrimSpace(id)
		return id, id != ""
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	// 7.0 is still user 7; 7.5 is not an id.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10), true
	}
	return "", false
}
