package auditor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/csv"
	"github.com/azure/azure-exposure-reporter/filepathparser"
	"github.com/azure/azure-exposure-reporter/json"
	"github.com/azure/azure-exposure-reporter/report"
	"github.com/azure/azure-exposure-reporter/runlog"
)

// AuditClient runs the configured report modules in order and exports one
// CSV overview per module. A module error is a fatal precondition (expired
// token, bad subscription) and aborts the run; per-resource problems have
// already been absorbed into the run log by the modules themselves.
type AuditClient struct {
	WorkingFolderPath string
	Modules           []report.IReportModule
	CsvClient         csv.IOverviewCsvClient
	JsonClient        json.IJsonClient
	RunLog            *runlog.RunLog
	ExportJson        bool
	Logger            *logrus.Logger
}

func NewAuditClient(workingFolderPath string, modules []report.IReportModule, csvClient csv.IOverviewCsvClient, jsonClient json.IJsonClient, runLog *runlog.RunLog, exportJson bool, logger *logrus.Logger) *AuditClient {
	return &AuditClient{
		WorkingFolderPath: workingFolderPath,
		Modules:           modules,
		CsvClient:         csvClient,
		JsonClient:        jsonClient,
		RunLog:            runLog,
		ExportJson:        exportJson,
		Logger:            logger,
	}
}

func (auditClient *AuditClient) Audit(ctx context.Context) error {
	for _, reportModule := range auditClient.Modules {
		auditClient.Logger.Infof("Running report module: %s", reportModule.Name())

		overview, err := reportModule.Run(ctx)
		if err != nil {
			return fmt.Errorf("report module %s: %w", reportModule.Name(), err)
		}

		if len(overview.Rows) == 0 {
			auditClient.Logger.Infof("No resources found by report module: %s", reportModule.Name())
		}

		csvFilePath := filepathparser.OutputFilePath(auditClient.WorkingFolderPath, reportModule.Name())
		auditClient.CsvClient.Export(overview, csvFilePath)

		if auditClient.ExportJson {
			auditClient.JsonClient.Export(overview, reportModule.Name()+".json")
		}
	}

	if err := auditClient.RunLog.Flush(); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}

	if auditClient.RunLog.HasErrors() {
		auditClient.Logger.Warnf("Audit completed with errors. Full log exported to: %s", auditClient.RunLog.LogFilePath)
	} else {
		auditClient.Logger.Info("Audit completed without errors")
	}

	return nil
}
