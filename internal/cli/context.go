// Package cli provides the command-line interface for sitegrain.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sitegrain/sitegrain/internal/app"
)

// ctxKey is used for storing the application in command contexts
type ctxKey struct{}

// setApp stores the Application in the command's context.
func setApp(cmd *cobra.Command, a *app.Application) {
	cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, a))
}

// getApp retrieves the Application from the command's context, or nil.
func getApp(cmd *cobra.Command) *app.Application {
	a, _ := cmd.Context().Value(ctxKey{}).(*app.Application)
	return a
}
