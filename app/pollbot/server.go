package pollbot

import (
	"net/http"
	"time"

	"github.com/groupchat/pollbot/app/pollbot/controller"
	"github.com/groupchat/pollbot/app/pollbot/types"
	"github.com/groupchat/pollbot/pkg/utils"
	"go.uber.org/zap"
)

// NewServer attaches the webhook HTTP server to the app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":8080")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
