package services

import (
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
)

// ProcessorFromEnv builds the document pipeline shared by every entry point.
// EXTRACTION_TIMEOUT bounds extraction per file, CLASSIFIER_CONFIG optionally
// points at a YAML file overriding the classifier weights and
// PROCESS_CONCURRENCY sets how many files of a batch run at once.
func ProcessorFromEnv(logger *slog.Logger) (*docproc.Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout, err := gcp.GetEnvDuration("EXTRACTION_TIMEOUT", docproc.DefaultExtractionTimeout)
	if err != nil {
		return nil, err
	}
	concurrency, err := gcp.GetEnvInt("PROCESS_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}

	opts := docproc.DefaultClassifierOptions()
	if path := gcp.GetEnv("CLASSIFIER_CONFIG", ""); path != "" {
		opts, err = docproc.LoadClassifierOptions(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load classifier config: %w", err)
		}
		logger.Info("Loaded classifier config.", "path", path)
	}

	return docproc.NewProcessor(docproc.ProcessorConfig{
		Extractor:   docproc.NewExtractor(docproc.ExtractorConfig{Timeout: timeout, Logger: logger}),
		Classifier:  docproc.NewClassifier(opts),
		Concurrency: concurrency,
		Logger:      logger,
	}), nil
}
