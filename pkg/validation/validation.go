package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zhTranslations "github.com/go-playground/validator/v10/translations/zh"

	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

var (
	once  sync.Once
	trans ut.Translator
)

func translator() ut.Translator {
	once.Do(func() {
		locale := zh.New()
		uni := ut.New(locale, locale)
		trans, _ = uni.GetTranslator("zh")
	})
	return trans
}

// New returns a validator that reports JSON field names and translates
// messages to Chinese.
func New() *validator.Validate {
	v := validator.New()
	configure(v)
	return v
}

func configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	_ = zhTranslations.RegisterDefaultTranslations(v, translator())
}

// Translate maps a validation error to field -> message. Non validation
// errors yield a single "detail" entry.
func Translate(err error) map[string]string {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(translator())
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}

// Error converts err into a validation *appErrors.Error whose message is the
// first translated field message, in field order.
func Error(err error) error {
	if err == nil {
		return nil
	}
	fields := Translate(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	message := ""
	if len(keys) > 0 {
		message = fields[keys[0]]
	}
	if _, ok := fields["detail"]; ok && len(fields) == 1 {
		message = appErrors.ErrValidation.Message
	}
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), fields)
}
