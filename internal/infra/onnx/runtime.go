// Package onnx runs the transition scorer and image embedder models through
// ONNX Runtime.
package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Initialize sets up the shared ONNX Runtime environment. libraryPath may be
// empty when libonnxruntime is on the default search path.
func Initialize(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

func Destroy() {
	if ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// newSessionOptions enables full graph optimization and the CUDA execution
// provider when one is available, falling back to CPU.
func newSessionOptions(logger *zap.Logger) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}

	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err == nil {
		if err := cudaOpts.Update(map[string]string{"device_id": "0"}); err == nil {
			if err := opts.AppendExecutionProviderCUDA(cudaOpts); err == nil {
				logger.Info("onnxruntime using CUDA execution provider")
			} else {
				logger.Warn("CUDA provider unavailable, using CPU", zap.Error(err))
			}
		}
		cudaOpts.Destroy()
	} else {
		logger.Info("onnxruntime using CPU", zap.Error(err))
	}

	if err := opts.SetIntraOpNumThreads(0); err != nil {
		logger.Warn("failed to set onnxruntime thread count", zap.Error(err))
	}

	return opts, nil
}
