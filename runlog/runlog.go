package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// RunLog accumulates per-resource errors over one run. Resolvers and report
// modules only append; nothing reads until the run ends, when Flush writes
// the records to the run's log file and the driver decides whether to exit
// with a "completed with errors" status. Appends are safe from concurrent
// report workers.
type RunLog struct {
	LogFilePath string
	Logger      *logrus.Logger

	mutex   sync.Mutex
	entries []string
}

func NewRunLog(logFilePath string, logger *logrus.Logger) *RunLog {
	return &RunLog{
		LogFilePath: logFilePath,
		Logger:      logger,
	}
}

// RecordError registers a recoverable per-resource error: the resource is
// skipped, the run continues.
func (runLog *RunLog) RecordError(resourcePath string, apiVersions []string, message string) {
	entry := fmt.Sprintf("%s: %s ; API versions: %v", message, resourcePath, apiVersions)

	runLog.mutex.Lock()
	runLog.entries = append(runLog.entries, entry)
	runLog.mutex.Unlock()

	runLog.Logger.Warn(entry)
}

func (runLog *RunLog) HasErrors() bool {
	runLog.mutex.Lock()
	defer runLog.mutex.Unlock()
	return len(runLog.entries) > 0
}

// Flush writes the accumulated records to the log file. No file is created
// for a clean run.
func (runLog *RunLog) Flush() error {
	runLog.mutex.Lock()
	entries := make([]string, len(runLog.entries))
	copy(entries, runLog.entries)
	runLog.mutex.Unlock()

	if len(entries) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(runLog.LogFilePath), 0755); err != nil {
		return err
	}

	return os.WriteFile(runLog.LogFilePath, []byte(strings.Join(entries, "\n")+"\n"), 0644)
}
