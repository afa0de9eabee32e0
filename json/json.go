package json

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type IJsonClient interface {
	Export(overview any, fileName string)
}

// JsonClient dumps a report's raw overview next to its CSV, mainly for
// debugging column-mapping problems.
type JsonClient struct {
	WorkingFolderPath string
	Logger            *logrus.Logger
}

func NewJsonClient(workingFolderPath string, logger *logrus.Logger) *JsonClient {
	return &JsonClient{
		WorkingFolderPath: workingFolderPath,
		Logger:            logger,
	}
}

func (jsonClient *JsonClient) Export(overview any, fileName string) {
	jsonOverview, err := json.MarshalIndent(overview, "", "  ")
	if err != nil {
		jsonClient.Logger.Fatal("Error during Marshal(): ", err)
	}

	jsonFilePath := filepath.Join(jsonClient.WorkingFolderPath, "output", fileName)
	if err := os.MkdirAll(filepath.Dir(jsonFilePath), 0755); err != nil {
		jsonClient.Logger.Fatal("Error creating output folder: ", err)
	}
	err = os.WriteFile(jsonFilePath, jsonOverview, 0644)
	if err != nil {
		jsonClient.Logger.Fatal("Error writing file: ", err)
	}
}
