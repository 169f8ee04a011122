// Package autoload configures the global logger from the environment as a
// side effect of being imported. Import it first in main:
//
//	_ "github.com/piyachat/chainflow/pkg/logger/autoload"
package autoload

import (
	configx "github.com/piyachat/chainflow/pkg/config"
	logx "github.com/piyachat/chainflow/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
