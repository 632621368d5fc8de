// File: internal/infra/security/initdata.go
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
)

const webAppDataKey = "WebAppData"

// VerifyInitData checks the Mini App initData signature against botToken.
// It never panics; any parse problem or mismatch yields false.
func VerifyInitData(initData, botToken string) bool {
	if initData == "" || botToken == "" {
		return false
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return false
	}
	hash := values.Get("hash")
	if hash == "" {
		return false
	}
	values.Del("hash")
	expected := sign(values, botToken)
	return hmac.Equal([]byte(expected), []byte(hash))
}

// SignInitData returns values encoded as initData with a valid hash appended.
// Any existing hash in values is replaced.
func SignInitData(values url.Values, botToken string) string {
	v := url.Values{}
	for k, vs := range values {
		if k == "hash" || len(vs) == 0 {
			continue
		}
		v.Set(k, vs[0])
	}
	v.Set("hash", sign(v, botToken))
	return v.Encode()
}

// sign computes hex(HMAC(HMAC("WebAppData", token), checkString)); the first value of each key is used.
func sign(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

type initDataUser struct {
	ID           json.RawMessage `json:"id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Username     string          `json:"username"`
	LanguageCode string          `json:"language_code"`
}

// ExtractUserID reads the numeric id from the user field. It does not verify the signature.
func ExtractUserID(initData string) (int64, bool) {
	u, ok := parseUser(initData)
	if !ok {
		return 0, false
	}
	return coerceID(u.ID)
}

// StartParam returns start_param, falling back to startapp.
func StartParam(initData string) string {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return ""
	}
	if p := values.Get("start_param"); p != "" {
		return p
	}
	return values.Get("startapp")
}

func parseUser(initData string) (*initDataUser, bool) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, false
	}
	raw := values.Get("user")
	if raw == "" {
		return nil, false
	}
	var u initDataUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}
	return &u, true
}

// coerceID accepts a JSON number or a quoted decimal string.
func coerceID(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, false
		}
		id = int64(f)
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}

// Verifier binds a bot token and optional freshness window.
type Verifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

func NewVerifier(botToken string, maxAge time.Duration) *Verifier {
	return &Verifier{botToken: botToken, maxAge: maxAge, now: time.Now}
}

// Identify verifies initData and returns the caller.
// Signature or freshness failures are domain.ErrUnauthorized; a verified blob
// without a usable user id is domain.ErrInvalidArgument.
func (v *Verifier) Identify(initData string) (*model.UserIdentity, error) {
	if !VerifyInitData(initData, v.botToken) {
		return nil, domain.ErrUnauthorized
	}
	values, _ := url.ParseQuery(initData)

	var authDate time.Time
	if ts, err := strconv.ParseInt(values.Get("auth_date"), 10, 64); err == nil && ts > 0 {
		authDate = time.Unix(ts, 0)
	}
	if v.maxAge > 0 {
		if authDate.IsZero() || v.now().Sub(authDate) > v.maxAge {
			return nil, fmt.Errorf("%w: init data expired", domain.ErrUnauthorized)
		}
	}

	u, ok := parseUser(initData)
	if !ok {
		return nil, fmt.Errorf("%w: missing user", domain.ErrInvalidArgument)
	}
	id, ok := coerceID(u.ID)
	if !ok {
		return nil, fmt.Errorf("%w: invalid user id", domain.ErrInvalidArgument)
	}
	return &model.UserIdentity{
		ID:           id,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageCode: u.LanguageCode,
		StartParam:   StartParam(initData),
		AuthDate:     authDate,
	}, nil
}
