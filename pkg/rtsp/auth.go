package rtsp

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// PasswordEnvVar is the fallback source for the digest secret when no
// explicit password is configured.
const PasswordEnvVar = "STREAM_PASSWORD"

// AuthContext carries the mutable digest-authentication state for one
// session. It is a value: each challenge step takes a context in and hands
// a new one back, which keeps the retry logic pure and testable.
type AuthContext struct {
	Username    string
	Realm       string
	Password    string
	Nonce       string
	ClientNonce string
	NonceCount  int
	Opaque      string
}

// NewAuthContext builds the initial authentication state. The password may
// come from the STREAM_PASSWORD environment variable; having neither is a
// configuration error.
func NewAuthContext(username, realm, password string) (AuthContext, error) {
	if password == "" {
		password = os.Getenv(PasswordEnvVar)
	}
	if password == "" {
		return AuthContext{}, &ConfigurationError{
			Reason: fmt.Sprintf("no stream password supplied and %s is unset", PasswordEnvVar),
		}
	}
	return AuthContext{
		Username:   username,
		Realm:      realm,
		Password:   password,
		NonceCount: 1,
	}, nil
}

// WithNonce returns a copy of the context primed for a server challenge:
// the nonce is recorded and a fresh client nonce generated.
func (a AuthContext) WithNonce(nonce string) AuthContext {
	a.Nonce = nonce
	a.ClientNonce = strings.ReplaceAll(uuid.NewString(), "-", "")
	return a
}

// Completed returns a copy with the nonce count advanced. Called exactly
// once per completed challenge.
func (a AuthContext) Completed() AuthContext {
	a.NonceCount++
	return a
}

// Authorization renders the digest Authorization header value for a request.
func (a AuthContext) Authorization(method, uri string) string {
	fields := []string{
		fmt.Sprintf(`Digest username="%s"`, a.Username),
		fmt.Sprintf(`realm="%s"`, a.Realm),
		fmt.Sprintf(`nonce="%s"`, a.Nonce),
		fmt.Sprintf(`uri="%s"`, uri),
		fmt.Sprintf("nc=%08d", a.NonceCount),
		fmt.Sprintf(`cnonce="%s"`, a.ClientNonce),
		"qop=",
		fmt.Sprintf(`response="%s"`, DigestResponse(a.Nonce, a.Username, a.Realm, a.Password, method, uri)),
		fmt.Sprintf(`opaque="%s"`, a.Opaque),
	}
	return strings.Join(fields, ",")
}

// DigestResponse computes the RFC 2617 challenge response,
// MD5(MD5(username:realm:password):nonce:MD5(method:uri)), lowercase hex.
// It is fully deterministic in its inputs.
func DigestResponse(nonce, username, realm, password, method, uri string) string {
	ha1 := md5Hex(strings.Join([]string{username, realm, password}, ":"))
	ha2 := md5Hex(strings.Join([]string{method, uri}, ":"))
	return md5Hex(strings.Join([]string{ha1, nonce, ha2}, ":"))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
