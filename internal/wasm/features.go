package wasm

// CoreFeature is a bit in the CoreFeatures set gating an optional Wasm
// proposal. The translator rejects a module requiring a feature the
// embedder's configured feature set does not include (spec §1/§4.1
// "unsupported feature combinations").
type CoreFeature uint64

const (
	CoreFeatureMultiValue CoreFeature = 1 << iota
	CoreFeatureBulkMemoryOperations
	CoreFeatureReferenceTypes
	CoreFeatureSignExtensionOps
	CoreFeatureNonTrappingFloatToIntConversion
	CoreFeatureMutableGlobal
	CoreFeatureGC
	CoreFeatureExtendedConst
	CoreFeatureThreads
)

// CoreFeaturesV2 is the default feature set: everything stable as of the
// Wasm "2.0" snapshot. Exceptions and the component model remain
// unsupported unconditionally (spec §1 Non-goals), so they are not bits in
// this set at all.
const CoreFeaturesV2 = CoreFeatureMultiValue |
	CoreFeatureBulkMemoryOperations |
	CoreFeatureReferenceTypes |
	CoreFeatureSignExtensionOps |
	CoreFeatureNonTrappingFloatToIntConversion |
	CoreFeatureMutableGlobal |
	CoreFeatureExtendedConst

// IsEnabled reports whether f is a subset of the receiver.
func (c CoreFeatures) IsEnabled(f CoreFeature) bool { return CoreFeature(c)&f == f }

// CoreFeatures is the set of CoreFeature bits an embedder enables for
// translation.
type CoreFeatures uint64
