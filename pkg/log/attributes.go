// Attribute keys shared by the estimators, the device backend and the parity harness.
// Keys are dotted so that JSON output can be filtered by prefix ("model.", "device.", "parity.").

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "Lasso" or "ElasticNet".
	ModelNameKey = "model.name"

	// ImplementationKey separates the device estimator from the host reference.
	// Values: ImplementationDevice, ImplementationReference.
	ImplementationKey = "model.implementation"

	// OperationKey specifies the operation being performed (fit, predict, score).
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or logger name.
	ComponentKey = "ml.component"
)

// Data shape.
const (
	// SamplesKey is the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of columns.
	FeaturesKey = "data.features"

	// InformativeKey is the number of informative columns of a generated dataset.
	InformativeKey = "data.informative"

	// PrecisionKey is the element type, "float32" or "float64".
	PrecisionKey = "data.precision"

	// ContainerKey is the input container kind, "array" or "table".
	ContainerKey = "data.container"
)

// Solver state and hyperparameters.
const (
	AlphaKey     = "hyperparams.alpha"
	L1RatioKey   = "hyperparams.l1_ratio"
	SelectionKey = "hyperparams.selection"
	TolKey       = "hyperparams.tol"
	MaxIterKey   = "hyperparams.max_iter"

	// RandomSeedKey records the seed used for random coordinate selection or data generation.
	RandomSeedKey = "config.random_seed"

	// IterationKey is the number of coordinate descent sweeps actually run.
	IterationKey = "training.iteration"

	// DualGapKey is the final duality gap of the reference solver.
	DualGapKey = "training.dual_gap"
)

// Scores and timing.
const (
	DurationMsKey = "perf.duration_ms"
	R2ScoreKey    = "metrics.r2_score"

	// ReferenceR2Key and DeviceR2Key are emitted side by side by the parity harness.
	ReferenceR2Key = "parity.reference_r2"
	DeviceR2Key    = "parity.device_r2"
	MarginKey      = "parity.margin"
	ScenarioKey    = "parity.scenario"
	TierKey        = "parity.tier"

	// ReferenceRMSEKey and DeviceRMSEKey carry the held-out RMSE of each estimator.
	ReferenceRMSEKey = "parity.reference_rmse"
	DeviceRMSEKey    = "parity.device_rmse"
)

// Device backend.
const (
	DeviceKey      = "device.name"
	BackendKey     = "device.backend"
	MemoryBytesKey = "device.memory_bytes"
	WorkersKey     = "device.workers"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	ErrorTypeKey  = "error.type"
	SuggestionKey = "error.suggestion"
)

// Standard values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	ImplementationDevice    = "device"
	ImplementationReference = "reference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorOutOfMemory       = "OUT_OF_MEMORY"
)
