package tui

import "errors"

// ErrMissingFragmentService is returned when the fragment service is not provided.
var ErrMissingFragmentService = errors.New("tui: fragment service is required")

// ErrMissingTrainingItemService is returned when the training item service is not provided.
var ErrMissingTrainingItemService = errors.New("tui: training item service is required")

// ErrMissingGenerationService is returned when the generation service is not provided.
var ErrMissingGenerationService = errors.New("tui: generation service is required")

// ErrMissingDatasetService is returned when the dataset service is not provided.
var ErrMissingDatasetService = errors.New("tui: dataset service is required")

// ErrMissingFineTuningService is returned when the fine-tuning service is not provided.
var ErrMissingFineTuningService = errors.New("tui: fine-tuning service is required")

// ErrMissingJobMonitor is returned when the job monitor is not provided.
var ErrMissingJobMonitor = errors.New("tui: job monitor is required")
