package config_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/okian/gigbook/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.JWTSecret, convey.ShouldEqual, config.DevJWTSecret)
			convey.So(cfg.RefetchQueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.RefetchWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.RefetchDelay(), convey.ShouldEqual, 500*time.Millisecond)
			convey.So(cfg.WriteTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
