package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"pos_ledger/internal/sheets"
)

func TestResumeWaitsForRunningCheckout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := NewDependencies(sheets.NewMemory(), Options{Location: time.UTC, CheckoutRetries: 1}, zaptest.NewLogger(t))
	h := NewSalesHandler(deps)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/checkouts/missing/resume", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	// A checkout in flight holds the register.
	h.mu.Lock()
	done := make(chan struct{})
	go func() {
		h.handleResumeCheckout(c)
		close(done)
	}()

	select {
	case <-done:
		h.mu.Unlock()
		t.Fatal("resume ran while a checkout was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	h.mu.Unlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resume did not run after the checkout finished")
	}
	assert.Equal(t, http.StatusNotFound, w.Code)
}
