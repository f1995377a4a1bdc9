package httpmiddleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/httpmiddleware"
)

type CheckinLimiterTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	limiter *httpmiddleware.CheckinLimiter
	ctx     context.Context
}

func (s *CheckinLimiterTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.limiter = httpmiddleware.NewCheckinLimiter(s.client, 5, 5*time.Minute)
	s.ctx = context.Background()
}

func (s *CheckinLimiterTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestCheckinLimiterTestSuite(t *testing.T) {
	suite.Run(t, new(CheckinLimiterTestSuite))
}

func (s *CheckinLimiterTestSuite) TestAllowsUpToLimit() {
	for i := 0; i < 5; i++ {
		s.True(s.limiter.Allow(s.ctx, "10.0.0.1"), "attempt %d should pass", i+1)
	}
	s.False(s.limiter.Allow(s.ctx, "10.0.0.1"))
}

func (s *CheckinLimiterTestSuite) TestKeysAreIndependent() {
	for i := 0; i < 6; i++ {
		s.limiter.Allow(s.ctx, "10.0.0.1")
	}
	s.True(s.limiter.Allow(s.ctx, "10.0.0.2"))
}

func (s *CheckinLimiterTestSuite) TestWindowResets() {
	for i := 0; i < 6; i++ {
		s.limiter.Allow(s.ctx, "10.0.0.1")
	}
	s.False(s.limiter.Allow(s.ctx, "10.0.0.1"))

	s.mr.FastForward(5*time.Minute + time.Second)

	s.True(s.limiter.Allow(s.ctx, "10.0.0.1"))
}

func (s *CheckinLimiterTestSuite) TestFailsOpenWhenRedisDown() {
	s.mr.Close()
	s.True(s.limiter.Allow(s.ctx, "10.0.0.1"))
}

func (s *CheckinLimiterTestSuite) TestMiddlewareRejectsWith429() {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/checkins", s.limiter.GinMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "success"})
	})

	var last int
	for i := 0; i < 6; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/checkins", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		last = w.Code
	}
	s.Equal(http.StatusTooManyRequests, last)
}
