package auditlog

import "go.uber.org/fx"

// Module exposes the audit log service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
