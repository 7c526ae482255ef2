package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status int
	body   []byte
}

type bodyCapture struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCapture) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache memoizes successful GET responses by request URI. Mutating endpoints
// pass straight through; responses served from cache are at most the TTL
// stale, which is acceptable for event lists and reporting counts but must
// never be applied to the registration endpoints themselves.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if entry, found := store.Get(key); found {
			resp := entry.(cachedResponse)
			c.Data(resp.status, "application/json; charset=utf-8", resp.body)
			c.Abort()
			return
		}

		capture := &bodyCapture{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = capture

		c.Next()

		if capture.Status() >= 200 && capture.Status() < 300 {
			store.Set(key, cachedResponse{
				status: capture.Status(),
				body:   capture.body.Bytes(),
			}, duration)
		}
	}
}
