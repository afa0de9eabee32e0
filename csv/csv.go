package csv

import (
	csvwriter "encoding/csv"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/types"
)

type IOverviewCsvClient interface {
	Export(overview *types.Overview, csvFilePath string)
}

// OverviewCsvClient writes a report overview to CSV. Rows with a network
// exposure get the exposure label in the second column and one continuation
// row per whitelisted location, so the allow-list stays readable in a
// spreadsheet without exploding the main row.
type OverviewCsvClient struct {
	Logger *logrus.Logger
}

func NewOverviewCsvClient(logger *logrus.Logger) *OverviewCsvClient {
	return &OverviewCsvClient{
		Logger: logger,
	}
}

func (csvClient *OverviewCsvClient) Export(overview *types.Overview, csvFilePath string) {
	csvData := [][]string{overview.Columns}

	for _, row := range overview.Rows {
		record := []string{row.Name}
		if row.Exposure != nil {
			record = append(record, row.Exposure.Label())
		}
		record = append(record, row.Values...)
		csvData = append(csvData, record)

		if row.Exposure == nil {
			continue
		}
		for _, whitelistedLocation := range row.Exposure.Whitelisted {
			continuationRow := make([]string, len(record))
			continuationRow[1] = whitelistedLocation
			csvData = append(csvData, continuationRow)
		}
	}

	csvClient.writeCsv(csvData, csvFilePath)
}

func (csvClient *OverviewCsvClient) writeCsv(csvData [][]string, csvFilePath string) {
	if err := os.MkdirAll(filepath.Dir(csvFilePath), 0755); err != nil {
		csvClient.Logger.Fatalf("Failed to create output folder: %v", err)
	}

	csvFile, err := os.Create(csvFilePath)
	if err != nil {
		csvClient.Logger.Fatalf("Failed to create file: %v", err)
	}
	defer csvFile.Close()

	csvWriter := csvwriter.NewWriter(csvFile)
	defer csvWriter.Flush()
	err = csvWriter.WriteAll(csvData)
	if err != nil {
		csvClient.Logger.Fatalf("Failed to write CSV file: %v", err)
	}

	csvClient.Logger.Infof("Overview written to %s", csvFilePath)
}
