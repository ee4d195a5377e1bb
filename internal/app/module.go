package app

import (
	"time"

	"github.com/fatflowers/entitlements/internal/app/api/server"
	auditlog "github.com/fatflowers/entitlements/internal/app/service/auditlog"
	"github.com/fatflowers/entitlements/internal/app/service/credit"
	"github.com/fatflowers/entitlements/internal/app/service/entitlement"
	"github.com/fatflowers/entitlements/internal/platform/db"
	"github.com/fatflowers/entitlements/pkg/config"
	"github.com/fatflowers/entitlements/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	auditlog.Module,
	entitlement.Module,
	credit.Module,
)
