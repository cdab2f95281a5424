// Package server wires the HTTP transport for the analysis service.
package server

import (
	"fmt"
	"strconv"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/compintel/compradar/internal/conf"
	"github.com/compintel/compradar/internal/export"
	"github.com/compintel/compradar/internal/metrics"
	"github.com/compintel/compradar/internal/service"
)

// NewHTTPServer builds the kratos HTTP server and registers all routes.
func NewHTTPServer(c *conf.Server, s *service.AnalysisService) *khttp.Server {
	var opts = []khttp.ServerOption{
		khttp.Middleware(
			recovery.Recovery(),
		),
	}
	if c != nil && c.Http != nil {
		if c.Http.Addr != "" {
			opts = append(opts, khttp.Address(c.Http.Addr))
		}
		if c.Http.Timeout != "" {
			if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
				opts = append(opts, khttp.Timeout(d))
			}
		}
	}

	srv := khttp.NewServer(opts...)
	registerRoutes(srv, s)

	metrics.Register()
	srv.Handle("/metrics", promhttp.Handler())
	return srv
}

func registerRoutes(srv *khttp.Server, s *service.AnalysisService) {
	r := srv.Route("/api/v1")

	r.POST("/competitors", func(ctx khttp.Context) error {
		var req service.CompetitorPayload
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := s.CreateCompetitor(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(201, reply)
	})

	r.GET("/competitors", func(ctx khttp.Context) error {
		reply, err := s.ListCompetitors(ctx)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/competitors/{id}", func(ctx khttp.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		reply, err := s.GetCompetitor(ctx, id)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.PUT("/competitors/{id}", func(ctx khttp.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		var req service.CompetitorPayload
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := s.UpdateCompetitor(ctx, id, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.DELETE("/competitors/{id}", func(ctx khttp.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		if err := s.DeleteCompetitor(ctx, id); err != nil {
			return err
		}
		return ctx.Result(204, nil)
	})

	r.POST("/runs", func(ctx khttp.Context) error {
		var req service.StartRunRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := s.StartRun(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(202, reply)
	})

	r.GET("/runs/{id}/status", func(ctx khttp.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		reply, err := s.GetRunStatus(ctx, id)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/runs/{id}/result", func(ctx khttp.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		reply, err := s.GetRunResult(ctx, id)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/runs/{id}/insights", func(ctx khttp.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		reply, err := s.GenerateInsights(ctx, id)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/runs/{id}/cancel", func(ctx khttp.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		reply, err := s.CancelRun(ctx, id)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/runs/{id}/export", func(ctx khttp.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		format := export.Format(ctx.Query().Get("format"))
		if format == "" {
			format = export.FormatCSV
		}
		f, err := s.ExportRun(ctx, id, format)
		if err != nil {
			return err
		}
		w := ctx.Response()
		w.Header().Set("Content-Type", f.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
		_, err = w.Write(f.Data)
		return err
	})
}

func pathID(ctx khttp.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Vars().Get("id"), 10, 64)
	if err != nil {
		return 0, kerrors.BadRequest("VALIDATION", "id must be an integer")
	}
	return id, nil
}
