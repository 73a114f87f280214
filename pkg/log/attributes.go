package log

// Model and operation identity.
const (
	ModelNameKey = "model.name"
	OperationKey = "ml.operation"
	ComponentKey = "ml.component"
	PhaseKey     = "ml.phase"
	RunIDKey     = "ml.run_id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	QueriesKey  = "data.queries"
	DatasetKey  = "data.name"
)

// Training progress.
const (
	IterationKey    = "training.iteration"
	TreesKey        = "training.trees"
	LeavesKey       = "training.leaves"
	LossKey         = "metrics.loss"
	MetricKey       = "metrics.name"
	MetricValueKey  = "metrics.value"
	BestIterKey     = "training.best_iteration"
	DurationMsKey   = "perf.duration_ms"
	StepSizeKey     = "training.step_size"
	DroppedTreesKey = "training.dropped_trees"
)

// Hyperparameters.
const (
	LearningRateKey = "hyperparams.learning_rate"
	ShrinkageKey    = "hyperparams.shrinkage"
	RandomSeedKey   = "config.random_seed"
)

// Errors.
const (
	ErrorKey      = "error"
	StacktraceKey = "error.stacktrace"
)

const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationLoad    = "load"
	OperationSave    = "save"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"
)
