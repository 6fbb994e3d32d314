// Package autoload initializes the global logger from the environment
// as a side effect of being imported.
package autoload

import (
	configx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/config"
	logx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
