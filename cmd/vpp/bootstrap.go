package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driven/config/file"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driven/llm/mistral"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driven/storage/jsonfile"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driven/storage/sqlite"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driving/cli"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/services"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// bootstrap wires the stores and services behind the CLI.
func bootstrap(opts cli.Options) (*cli.App, error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	configDir := filepath.Dir(configStore.Path())

	settingsSvc := services.NewSettingsService(configStore)
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	root, err := resolveDir(settings.Media.ThumbnailsDir)
	if err != nil {
		return nil, err
	}
	cacheDir, err := resolveDir(settings.Cache.Dir)
	if err != nil {
		return nil, err
	}
	logger.Debug("bootstrap: thumbnails=%s cache=%s config=%s", root, cacheDir, configDir)

	indexStore, err := jsonfile.NewIndexStore(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}
	relevance, err := jsonfile.NewRelevanceCache(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("open relevance cache: %w", err)
	}

	db, err := sqlite.NewStore(filepath.Join(configDir, "data"))
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	history := db.SchedulerStore()

	builder := services.NewIndexBuilder(settings.Media.FrameExts)
	index := services.NewIndexService(builder, indexStore, history, root, cacheDir)

	governor := services.NewGovernor(settings.API.Keys, settings.API.RequestInterval)
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	dispatcher := services.NewDispatcher(governor, services.WithContext(ctx))

	vision := mistral.NewVisionService(mistral.Config{
		BaseURL:     settings.API.BaseURL,
		TextModel:   settings.API.TextModel,
		VisionModel: settings.API.VisionModel,
		Timeout:     settings.API.Timeout,
		MaxRetries:  settings.API.MaxRetries,
		FrameExts:   settings.Media.FrameExts,
	})
	if prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts")); err != nil {
		logger.Warn("prompts: using built-in defaults: %v", err)
	} else {
		vision.SetPromptStore(prompts)
	}

	search := services.NewSearchService(index, dispatcher, governor, vision, relevance, services.SearchConfig{
		Settings:    settings.Search,
		MediaRoot:   root,
		TaskTimeout: settings.API.TaskTimeout,
	})

	return &cli.App{
		Settings:   settingsSvc,
		Index:      index,
		Search:     search,
		Describer:  services.NewDescriber(builder, root, dispatcher, vision, history, settings.API.TaskTimeout),
		Dispatcher: dispatcher,
		Monitor:    services.NewChangeMonitor(index, settings.Monitor),
		KeySync:    services.NewCredentialSync(configStore, governor, settings.API.RefreshInterval,
			services.WithWorkerPool(dispatcher)),
		History:    history,
		Close: func() error {
			return errors.Join(relevance.Save(), db.Close())
		},
	}, nil
}

// resolveDir makes a configured directory absolute against the working
// directory.
func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}
