/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valpere/hadithfeed/internal/completion"
	"github.com/valpere/hadithfeed/internal/config"
	"github.com/valpere/hadithfeed/internal/local"
	"github.com/valpere/hadithfeed/internal/provider"
	"github.com/valpere/hadithfeed/internal/source"
	"github.com/valpere/hadithfeed/internal/store"
)

// app bundles everything a retrieval command needs. close releases the
// databases.
type app struct {
	provider *provider.Provider
	content  *local.DB
	state    *store.Store
}

func (a *app) close() {
	if a.content != nil {
		a.content.Close()
	}
	if a.state != nil {
		a.state.Close()
	}
}

func openState(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return st, nil
}

func openContent(path string) (*local.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	db, err := local.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content database: %w", err)
	}
	return db, nil
}

// buildSources constructs the remote origins in priority order.
func buildSources(c *config.Config, logger *zap.Logger) []source.Client {
	sunnah := source.NewSunnahClient(source.Options{
		BaseURL: c.SunnahURL,
		Timeout: c.Timeout(),
		Delay:   c.RequestDelay,
		Logger:  logger.Named("sunnah"),
	})
	alhadees := source.NewAlHadeesClient(source.Options{
		BaseURL: c.AlHadeesURL,
		Timeout: c.Timeout(),
		Delay:   c.RequestDelay,
		Logger:  logger.Named("alhadees"),
	})
	return []source.Client{sunnah, alhadees}
}

// buildCompleter returns nil when AI translation is disabled or the backend
// cannot be initialised; retrieval then proceeds without completion.
func buildCompleter(ctx context.Context, c *config.Config, state *store.Store, logger *zap.Logger) completion.Completer {
	if !c.AITranslationEnabled {
		return nil
	}
	comp, err := completion.New(ctx, completion.Options{
		Model:             c.AIModel,
		Timeout:           completion.DefaultTimeout,
		GeminiAPIKeys:     completion.ParseKeys(c.GeminiAPIKey),
		OllamaURL:         c.OllamaURL,
		OpenRouterAPIKey:  c.OpenRouterAPIKey,
		GoogleCredentials: c.GoogleCredentials,
		Memory:            state,
		Validate:          c.ValidateLanguage,
		Logger:            logger.Named("completion"),
	})
	if err != nil {
		logger.Warn("AI translation will not be available", zap.String("model", c.AIModel), zap.Error(err))
		return nil
	}
	logger.Info("initialized AI translation", zap.String("model", c.AIModel), zap.String("backend", comp.Name()))
	return comp
}

func buildApp(ctx context.Context, c *config.Config) (*app, error) {
	a := &app{}

	var err error
	a.state, err = openState(c.StatePath)
	if err != nil {
		return nil, err
	}

	a.content, err = openContent(c.DatabasePath)
	if err != nil {
		a.close()
		return nil, err
	}

	var sources []source.Client
	if c.Mode == config.ModeOnline {
		sources = buildSources(c, logger)
	}

	a.provider = provider.New(provider.Config{
		Mode:            provider.Mode(c.Mode),
		FallbackToLocal: c.FallbackToLocal,
		AIEnabled:       c.AITranslationEnabled,
		MaxAttempts:     c.MaxAttempts,
		Targets:         provider.DefaultTargets,
	}, sources, a.content, buildCompleter(ctx, c, a.state, logger), logger.Named("provider"))

	return a, nil
}
