package commands

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/vsinha/mbom/pkg/interfaces/api"
)

// runServe serves the HTTP API until ctx is cancelled
func (c *MBOMCommand) runServe(ctx context.Context) error {
	b, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close(c)

	if c.settings.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(api.Services{
		Costing:      b.costing,
		Reports:      b.reports,
		Requirements: b.requirements,
		Lifecycle:    b.lifecycle,
		Products:     b.store,
		Catalog:      b.store,
	}, c.logger)

	return api.Serve(ctx, c.settings.Server, router, c.logger)
}
