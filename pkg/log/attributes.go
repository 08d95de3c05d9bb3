package log

// Model and operation context.
const (
	// ModelNameKey identifies the algorithm, e.g. "Random Forest".
	ModelNameKey = "model.name"

	// ModelSlugKey is the file-safe algorithm identifier, e.g. "random_forest".
	ModelSlugKey = "model.slug"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "evaluate", "prepare".
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase, e.g. "training" or "inference".
	PhaseKey = "ml.phase"

	// RunIDKey identifies one training run (the manifest's run id).
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// PositivesKey is the number of rows labelled as the positive class.
	PositivesKey = "data.positives"

	// SourceKey names the file or upload a table was read from.
	SourceKey = "data.source"
)

// Performance and evaluation metrics.
const (
	DurationMsKey = "perf.duration_ms"

	AccuracyKey  = "metrics.accuracy"
	PrecisionKey = "metrics.precision"
	RecallKey    = "metrics.recall"
	F1Key        = "metrics.f1"
	MCCKey       = "metrics.mcc"
	AUCKey       = "metrics.auc"
	LossKey      = "metrics.loss"

	// IterationKey records the current iteration of an iterative solver.
	IterationKey = "training.iteration"
)

// Prediction context.
const (
	PredsKey      = "preds.count"
	ConfidenceKey = "preds.confidence"
	ThresholdKey  = "preds.threshold"
)

// Error context.
const (
	ErrorKey      = "error"
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Configuration context.
const (
	RandomSeedKey = "config.random_seed"
	PathKey       = "config.path"
	AddrKey       = "http.addr"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationPrepare   = "prepare"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
