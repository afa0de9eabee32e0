package filepathparser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func ParsePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		dirname, _ := os.UserHomeDir()
		path = filepath.Join(dirname, path[2:])
	}

	return filepath.Abs(path)
}

// OutputFilePath builds the path of a report's CSV file:
// <workingFolderPath>/output/yyyy-mm-dd_<reportName>.csv
func OutputFilePath(workingFolderPath string, reportName string) string {
	date := time.Now().Format("2006-01-02")
	fileName := fmt.Sprintf("%s_%s.csv", date, reportName)
	return filepath.Join(workingFolderPath, "output", fileName)
}

// LogFilePath builds the path of the run's error log:
// <workingFolderPath>/logs/yyyy-mm-dd_hh.mm.ss.log
func LogFilePath(workingFolderPath string) string {
	timestamp := time.Now().Format("2006-01-02_15.04.05")
	return filepath.Join(workingFolderPath, "logs", timestamp+".log")
}
