package bootstrap

import (
	"context"
	"fmt"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"go.uber.org/zap"
)

// StartupTask is one named, flagged entry in the startup sequencer's task
// list (spec §4.5).
type StartupTask struct {
	Name string
	Fn   func(ctx context.Context) error

	OnlyMaster   bool
	OnlySlave    bool
	OnThread     bool // run in background, don't block subsequent tasks
	NoExnRaising bool // log and continue past a failure instead of aborting
}

// RunTaskList executes tasks in order for a node that resolved to role,
// honoring each task's flags. A task whose OnlyMaster/OnlySlave doesn't
// match role is skipped. The first non-NoExnRaising failure aborts the
// remaining list.
func RunTaskList(ctx context.Context, log *logger.Logger, role Role, tasks []StartupTask) error {
	for _, task := range tasks {
		if task.OnlyMaster && role != RoleMaster {
			continue
		}
		if task.OnlySlave && role != RoleSlave {
			continue
		}

		run := func() error {
			log.Debug("running startup task", zap.String("task", task.Name))
			return task.Fn(ctx)
		}

		if task.OnThread {
			go func(task StartupTask) {
				if err := run(); err != nil {
					log.Warn("background startup task failed", zap.String("task", task.Name), zap.Error(err))
				}
			}(task)
			continue
		}

		if err := run(); err != nil {
			if task.NoExnRaising {
				log.Warn("startup task failed, continuing", zap.String("task", task.Name), zap.Error(err))
				continue
			}
			return fmt.Errorf("startup task %q failed: %w", task.Name, err)
		}
	}
	return nil
}
