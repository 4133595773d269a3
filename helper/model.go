package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// PrepareModel downloads modelName into modelDir if it doesn't exist yet
// and returns the local model path. onnxFilePath selects the onnx file
// inside the repository; empty uses "onnx/model.onnx".
func PrepareModel(modelDir string, modelName string, onnxFilePath string) (string, error) {
	if modelName == "" {
		return "", fmt.Errorf("failed to prepare model: model name is empty")
	}
	if modelDir == "" {
		modelDir = "./models"
	}
	if onnxFilePath == "" {
		onnxFilePath = "onnx/model.onnx"
	}

	modelPath := ModelPath(modelDir, modelName)

	_, err := os.Stat(modelPath)
	if err == nil {
		return modelPath, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model path: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = onnxFilePath
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}

	return downloadedPath, nil
}

// ModelPath is the directory hugot stores modelName in.
func ModelPath(modelDir string, modelName string) string {
	return filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
}
