package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/fileutil"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Verify interface compliance.
var _ driving.Describer = (*Describer)(nil)

// descriptionPerm is the mode of written description files.
const descriptionPerm = 0644

// Describer asks the vision model to describe frames that have no
// description file yet, and writes one next to each frame.
type Describer struct {
	builder     *IndexBuilder
	root        string
	dispatcher  *Dispatcher
	vision      driven.VisionService
	history     driven.SchedulerStore
	taskTimeout time.Duration
	now         func() time.Time
}

// NewDescriber creates a describer over the media root. history may be nil.
func NewDescriber(
	builder *IndexBuilder,
	root string,
	dispatcher *Dispatcher,
	vision driven.VisionService,
	history driven.SchedulerStore,
	taskTimeout time.Duration,
) *Describer {
	return &Describer{
		builder:     builder,
		root:        root,
		dispatcher:  dispatcher,
		vision:      vision,
		history:     history,
		taskTimeout: taskTimeout,
		now:         time.Now,
	}
}

// Pending lists frames without a description file, as sorted slash paths
// relative to the media root. A missing root has nothing pending.
func (d *Describer) Pending(ctx context.Context) ([]string, error) {
	var pending []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			logger.Debug("describe: skipping %s: %v", path, err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !d.builder.IsFrame(entry.Name()) {
			return nil
		}
		if _, err := os.Stat(DescriptionPath(path)); err == nil {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return nil
		}
		pending = append(pending, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pending frames: %w", err)
	}
	sort.Strings(pending)
	return pending, nil
}

// DescribeAll submits one describe task per pending frame and writes each
// description as it arrives. Failed frames are logged and left pending.
func (d *Describer) DescribeAll(ctx context.Context) (domain.DescribeReport, error) {
	if d.vision == nil || d.dispatcher == nil {
		return domain.DescribeReport{}, domain.ErrLLMUnavailable
	}

	logger.Section("Frame Describe")
	result := &domain.TaskResult{TaskID: domain.TaskIDDescribe, StartedAt: d.now()}

	report, err := d.describeAll(ctx)
	result.EndedAt = d.now()
	result.ItemsProcessed = report.Described
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
	}
	recordRun(ctx, d.history, "Frame Describe", result)

	return report, err
}

func (d *Describer) describeAll(ctx context.Context) (domain.DescribeReport, error) {
	pending, err := d.Pending(ctx)
	if err != nil {
		return domain.DescribeReport{}, err
	}
	report := domain.DescribeReport{Pending: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}
	logger.Info("describe: %d frame(s) pending", len(pending))

	tasks := make([]*Pending, len(pending))
	for i, rel := range pending {
		image := filepath.Join(d.root, filepath.FromSlash(rel))
		p, err := d.dispatcher.Submit(domain.TaskKindDescribe, func(ctx context.Context, cred domain.Credential) (any, error) {
			return d.vision.DescribeFrame(ctx, cred.Secret, image)
		})
		if err != nil {
			return report, fmt.Errorf("submit describe task: %w", err)
		}
		tasks[i] = p
	}

	for i, p := range tasks {
		rel := pending[i]
		res, err := p.Wait(ctx, d.taskTimeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			logger.Warn("describe: %s failed: %v", rel, err)
			report.Failed++
			continue
		}
		text, _ := res.(string)
		if strings.TrimSpace(text) == "" {
			logger.Warn("describe: %s: empty description", rel)
			report.Failed++
			continue
		}

		image := filepath.Join(d.root, filepath.FromSlash(rel))
		if err := d.save(image, text); err != nil {
			logger.Error("describe: %s: %v", rel, err)
			report.Failed++
			continue
		}
		report.Described++
		logger.Debug("describe: wrote %s", DescriptionPath(rel))
	}

	logger.Info("describe: %d described, %d failed", report.Described, report.Failed)
	return report, nil
}

// save writes the description file for image atomically.
func (d *Describer) save(image, text string) error {
	now := d.now()
	desc := domain.FrameDescription{
		ImagePath: image,
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
		Text:      text,
	}
	data, err := json.MarshalIndent(desc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode description: %w", err)
	}
	if err := fileutil.WriteAtomic(DescriptionPath(image), data, descriptionPerm); err != nil {
		return fmt.Errorf("write description: %w", err)
	}
	return nil
}

// Run calls DescribeAll every interval until ctx is cancelled.
func (d *Describer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = domain.DefaultAppSettings().Monitor.Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.DescribeAll(ctx); err != nil && ctx.Err() == nil {
			logger.Error("describe: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
