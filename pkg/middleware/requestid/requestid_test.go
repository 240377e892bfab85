package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) { seen = Value(c) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(HeaderKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestMiddlewareKeepsWellFormedID(t *testing.T) {
	w, seen := serve("trace-0001:abc")
	assert.Equal(t, "trace-0001:abc", seen)
	assert.Equal(t, "trace-0001:abc", w.Header().Get(HeaderKey))
}

func TestMiddlewareReplacesMissingOrUnsafeID(t *testing.T) {
	for _, in := range []string{"", "short", "has space in it", "line\nbreak-injection"} {
		w, seen := serve(in)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, in)
		assert.Equal(t, seen, w.Header().Get(HeaderKey))
	}
}

func TestValueWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", Value(c))
}
