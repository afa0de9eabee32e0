package auditor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/azure-exposure-reporter/report"
	"github.com/azure/azure-exposure-reporter/runlog"
	"github.com/azure/azure-exposure-reporter/types"
)

type mockReportModule struct {
	ModuleName string
	Overview   *types.Overview
	Err        error
}

func (mockModule *mockReportModule) Name() string {
	return mockModule.ModuleName
}

func (mockModule *mockReportModule) Run(ctx context.Context) (*types.Overview, error) {
	return mockModule.Overview, mockModule.Err
}

type mockCsvClient struct {
	ExportedPaths []string
}

func (mockClient *mockCsvClient) Export(overview *types.Overview, csvFilePath string) {
	mockClient.ExportedPaths = append(mockClient.ExportedPaths, csvFilePath)
}

type mockJsonClient struct {
	ExportedFileNames []string
}

func (mockClient *mockJsonClient) Export(overview any, fileName string) {
	mockClient.ExportedFileNames = append(mockClient.ExportedFileNames, fileName)
}

func emptyOverview() *types.Overview {
	return &types.Overview{Columns: []string{"Name", "Allow access from"}}
}

func TestAudit_ExportsOneCsvPerModule(t *testing.T) {
	workingFolderPath := t.TempDir()
	csvClient := &mockCsvClient{}
	jsonClient := &mockJsonClient{}
	runLog := runlog.NewRunLog(filepath.Join(workingFolderPath, "run.log"), logrus.New())
	modules := []report.IReportModule{
		&mockReportModule{ModuleName: "key-vaults", Overview: emptyOverview()},
		&mockReportModule{ModuleName: "sql-servers", Overview: emptyOverview()},
	}

	auditClient := NewAuditClient(workingFolderPath, modules, csvClient, jsonClient, runLog, false, logrus.New())

	require.NoError(t, auditClient.Audit(context.Background()))
	require.Len(t, csvClient.ExportedPaths, 2)
	assert.Contains(t, csvClient.ExportedPaths[0], "key-vaults.csv")
	assert.Contains(t, csvClient.ExportedPaths[1], "sql-servers.csv")
	assert.Empty(t, jsonClient.ExportedFileNames)
}

func TestAudit_ExportsJsonWhenEnabled(t *testing.T) {
	workingFolderPath := t.TempDir()
	jsonClient := &mockJsonClient{}
	runLog := runlog.NewRunLog(filepath.Join(workingFolderPath, "run.log"), logrus.New())
	modules := []report.IReportModule{
		&mockReportModule{ModuleName: "storage-accounts", Overview: emptyOverview()},
	}

	auditClient := NewAuditClient(workingFolderPath, modules, &mockCsvClient{}, jsonClient, runLog, true, logrus.New())

	require.NoError(t, auditClient.Audit(context.Background()))
	assert.Equal(t, []string{"storage-accounts.json"}, jsonClient.ExportedFileNames)
}

func TestAudit_ModuleErrorAbortsRun(t *testing.T) {
	workingFolderPath := t.TempDir()
	csvClient := &mockCsvClient{}
	runLog := runlog.NewRunLog(filepath.Join(workingFolderPath, "run.log"), logrus.New())
	modules := []report.IReportModule{
		&mockReportModule{ModuleName: "key-vaults", Err: errors.New("token is expired")},
		&mockReportModule{ModuleName: "sql-servers", Overview: emptyOverview()},
	}

	auditClient := NewAuditClient(workingFolderPath, modules, csvClient, &mockJsonClient{}, runLog, false, logrus.New())

	err := auditClient.Audit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key-vaults")
	assert.Empty(t, csvClient.ExportedPaths)
}
