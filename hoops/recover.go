package hoops

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/weftkit/weft"
)

// RecoverConfig configures the Recover hoop.
type RecoverConfig struct {
	// StackSize bounds the recorded stack trace. Optional, default 4KB.
	StackSize int

	// DisableStackAll disables capturing the other goroutines' stacks
	// alongside the panicking one.
	DisableStackAll bool

	// DisablePrintStack disables logging the stack trace entirely.
	DisablePrintStack bool
}

// DefaultRecoverConfig is the default RecoverConfig.
var DefaultRecoverConfig = RecoverConfig{
	StackSize: 4 << 10,
}

// Recover returns a hoop that turns a panic anywhere later in the chain into
// a 500 response instead of crashing the serving goroutine.
func Recover() weft.Handler {
	return RecoverWithConfig(DefaultRecoverConfig)
}

// RecoverWithConfig returns a Recover hoop built from config.
func RecoverWithConfig(config RecoverConfig) weft.Handler {
	if config.StackSize == 0 {
		config.StackSize = DefaultRecoverConfig.StackSize
	}

	return weft.HandlerFunc(func(req *weft.Request, depot *weft.Depot, res *weft.Response, ctrl *weft.FlowCtrl) {
		defer func() {
			if v := recover(); v != nil {
				var err error
				switch e := v.(type) {
				case error:
					err = e
				default:
					err = fmt.Errorf("%v", v)
				}

				if !config.DisablePrintStack {
					stack := make([]byte, config.StackSize)
					length := runtime.Stack(stack, !config.DisableStackAll)
					req.Weft.ERROR("panic recovered in hoop chain", map[string]interface{}{
						"error": err.Error(),
						"stack": string(stack[:length]),
					})
				}

				if !res.Written {
					res.Status = http.StatusInternalServerError
				}

				ctrl.Cease()
			}
		}()

		ctrl.Next(req, depot, res)
	})
}
