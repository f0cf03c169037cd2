// Package api exposes the costing engine over HTTP
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/infrastructure/config"
)

// NewRouter builds the gin engine with every route registered
func NewRouter(svc Services, logger logrus.FieldLogger) *gin.Engine {
	h := NewHandler(svc, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := r.Group("/api/v1")
	{
		mboms := v1.Group("/mboms")
		mboms.GET("/:id/costs", h.GetBOMCosts)
		if svc.Lifecycle != nil {
			mboms.POST("/:id/activate", h.ActivateBOM)
			mboms.POST("/:id/clone", h.CloneBOM)
			mboms.PUT("/:id/lines", h.UpsertLine)
		}

		v1.GET("/products/:code/costs", h.GetProductCosts)
		if svc.Lifecycle != nil && svc.Catalog != nil {
			v1.POST("/products/:code/mbom/import", h.ImportBOMTree)
		}
		v1.GET("/reports/costs", h.GetCostReport)
		v1.POST("/plans/requirements", h.PostRequirements)
		v1.GET("/fx/nearest", h.GetNearestRate)
	}

	r.NoRoute(func(c *gin.Context) {
		notFoundResponse(c, "route not found")
	})
	return r
}

// Serve runs the API until ctx is cancelled, then shuts down gracefully
func Serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
