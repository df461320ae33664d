package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/naveenspark/sidechat/internal/video"
)

// SignalRequest is the body of POST /signal. URL is parsed for a video id;
// with neither field set the active video is cleared.
type SignalRequest struct {
	VideoID *string `json:"video_id"`
	URL     string  `json:"url"`
}

// SetupRouter builds the bridge HTTP API.
func SetupRouter(mb *Mailbox) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/signal", func(c *gin.Context) {
		s, ok := mb.Pending()
		if !ok {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, s)
	})
	r.POST("/signal", func(c *gin.Context) {
		var req SignalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signal body"})
			return
		}
		videoID, err := req.resolve()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, mb.Post(videoID))
	})
	return r
}

func (r SignalRequest) resolve() (string, error) {
	switch {
	case r.URL != "":
		id, ok := video.ParseID(r.URL)
		if !ok {
			return "", errors.New("not a video url")
		}
		return id, nil
	case r.VideoID != nil && *r.VideoID != "":
		if !video.ValidID(*r.VideoID) {
			return "", errors.New("invalid video id")
		}
		return *r.VideoID, nil
	}
	return "", nil
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().Str("module", "bridge").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

// Server is the running bridge listener.
type Server struct {
	srv  *http.Server
	addr net.Addr
}

// Start listens on addr and serves the bridge API until Shutdown.
func Start(addr string, mb *Mailbox) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridge listen %s: %w", addr, err)
	}
	s := &Server{
		srv:  &http.Server{Handler: SetupRouter(mb), ReadHeaderTimeout: 5 * time.Second},
		addr: ln.Addr(),
	}
	go func() {
		log.Info().Str("module", "bridge").Str("addr", s.addr.String()).Msg("bridge listening")
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("module", "bridge").Msg("bridge server error")
		}
	}()
	return s, nil
}

// Addr is the bound address.
func (s *Server) Addr() string { return s.addr.String() }

// Shutdown stops the listener, waiting up to 2s for requests in flight.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
