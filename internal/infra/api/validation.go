package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxImageBytes = 3 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && strings.Trim(s, "0123456789") == ""
	})
	_ = v.RegisterValidation("image_b64", func(fl validator.FieldLevel) bool {
		_, err := decodeImage(fl.Field().String())
		return err == nil
	})
	return v
}

// flexID is a telegram id sent either as a JSON number or a string.
// Only the text is kept; the "digits" rule decides whether it is valid.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("chat_id must be a number or a string")
		}
		*f = flexID(n.String())
	}
	return nil
}

// decodeImage accepts raw base64 or a data URL and enforces the size cap.
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.Contains(s[:i], ";base64") {
			return nil, fmt.Errorf("malformed data url")
		}
		s = s[i+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("empty image")
	}
	if base64.StdEncoding.DecodedLen(len(s)) > maxImageBytes+3 {
		return nil, fmt.Errorf("image too large")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) > maxImageBytes {
		return nil, fmt.Errorf("image too large")
	}
	return b, nil
}

// validationDetails validates s and flattens field errors into one message, or "" when valid.
func validationDetails(s any) string {
	err := validate.Struct(s)
	if err == nil {
		return ""
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+": "+describe(fe))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "digits":
		return "must contain only digits"
	case "image_b64":
		return "must be base64 image data of at most 3MB"
	default:
		return "is invalid"
	}
}
