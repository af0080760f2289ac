package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/gigbook/internal/adapters/http/api"
	"github.com/okian/gigbook/internal/adapters/http/swagger"
	app "github.com/okian/gigbook/internal/app"
	"github.com/okian/gigbook/internal/config"
	"github.com/okian/gigbook/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			t.Setenv("GIGBOOK_CONFIG", "")
			t.Setenv("GIGBOOK_ENV_FILE", t.TempDir()+"/missing.env")
			t.Setenv("GIGBOOK_ADDR", ":8081")
			t.Setenv("GIGBOOK_REFETCH_QUEUE_SIZE", "64")
			t.Setenv("GIGBOOK_REFETCH_WORKERS", "2")

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.RefetchQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.RefetchWorkers, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When wiring the HTTP routes to a started service", func() {
			ctx := context.Background()
			svc := app.New(app.WithWorkerCount(1), app.WithQueueSize(8))
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop(ctx)

			mux := http.NewServeMux()
			swagger.Register(ctx, mux)
			auth := api.NewAuthenticator(config.DevJWTSecret)
			api.NewServer(svc, svc, auth).Register(ctx, mux)

			convey.Convey("Then stats and docs are served", func() {
				for _, path := range []string{"/stats", "/openapi.yaml", "/api-docs", "/healthz"} {
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("Then an owner can create a venue with a token", func() {
				tok, err := auth.Issue("owner-1", time.Minute)
				convey.So(err, convey.ShouldBeNil)

				req := httptest.NewRequest(http.MethodPost, "/venues", strings.NewReader(`{"name":"Blue Room"}`))
				req.Header.Set("Authorization", "Bearer "+tok)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			})
		})
	})
}

func TestServiceStatsUpdater(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		svc := app.New(app.WithWorkerCount(1))
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop(context.Background())

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				startServiceStatsUpdater(ctx, svc)
				close(done)
			}()
			cancel()

			convey.Convey("Then the updater returns", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					convey.So("updater did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})
}
