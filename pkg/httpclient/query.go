package httpclient

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
)

// Query holds query parameters. Nil values, nil pointers and empty strings
// are dropped so optional filters can be passed unconditionally.
type Query map[string]interface{}

// Set stores value under key and returns q for chaining.
func (q Query) Set(key string, value interface{}) Query {
	q[key] = value
	return q
}

// Encode renders the parameters in key order.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	values := url.Values{}
	for key, raw := range q {
		if s, ok := formatValue(raw); ok {
			values.Set(key, s)
		}
	}
	return values.Encode()
}

func formatValue(v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "", false
		}
		v = rv.Elem().Interface()
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case bool:
		return strconv.FormatBool(t), true
	case fmt.Stringer:
		s := t.String()
		return s, s != ""
	default:
		s := fmt.Sprint(t)
		return s, s != ""
	}
}
