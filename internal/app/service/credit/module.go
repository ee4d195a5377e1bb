package credit

import "go.uber.org/fx"

// Module exposes the credit ledger service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
