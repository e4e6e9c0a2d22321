package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
)

type settingsOutput struct {
	MaxCapacityBase float64 `json:"max_capacity_base"`
	ChannelID       string  `json:"channel_id"`
}

type settingsSetInput struct {
	MaxCapacityBase float64 `json:"max_capacity_base,omitempty"`
	ChannelID       *string `json:"channel_id,omitempty"`
}

func registerSettingsTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("settings.get").
		Description("Get the capacity base and the management channel for overload alerts").
		Handler(settingsGet(app))

	srv.Tool("settings.set").
		Description("Update the capacity base or the management channel; an empty channel_id disables alerts").
		Handler(settingsSet(app))

	return nil
}

func settingsGet(app *cli.App) func(ctx context.Context, input struct{}) (*settingsOutput, error) {
	return func(ctx context.Context, input struct{}) (*settingsOutput, error) {
		if app == nil || app.Settings == nil {
			return nil, notConfigured("settings")
		}
		s, err := app.Settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		return &settingsOutput{MaxCapacityBase: s.MaxCapacityBase, ChannelID: s.ChannelID}, nil
	}
}

func settingsSet(app *cli.App) func(ctx context.Context, input settingsSetInput) (*settingsOutput, error) {
	return func(ctx context.Context, input settingsSetInput) (*settingsOutput, error) {
		if app == nil || app.Settings == nil {
			return nil, notConfigured("settings")
		}
		if input.MaxCapacityBase < 0 {
			return nil, errors.New("max_capacity_base must be positive")
		}
		s, err := app.Settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		if input.MaxCapacityBase > 0 {
			s.MaxCapacityBase = input.MaxCapacityBase
		}
		if input.ChannelID != nil {
			s.ChannelID = *input.ChannelID
		}
		if err := app.Settings.Save(ctx, s); err != nil {
			return nil, err
		}
		return &settingsOutput{MaxCapacityBase: s.MaxCapacityBase, ChannelID: s.ChannelID}, nil
	}
}
