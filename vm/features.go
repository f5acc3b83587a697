package vm

import "fmt"

// ---------------------------------------------------------------------------
// Language versions
// ---------------------------------------------------------------------------

// Language versions understood by the engine.
const (
	VersionUnknown    = -1
	Version100        = 100
	Version110        = 110
	Version120        = 120
	Version130        = 130
	Version140        = 140
	Version150        = 150
	Version160        = 160
	Version170        = 170
	Version180        = 180
	VersionES6        = 200
	VersionECMAScript = 250
	VersionDefault    = VersionECMAScript
)

// IsValidLanguageVersion reports whether v names a supported version.
func IsValidLanguageVersion(v int) bool {
	switch v {
	case Version100, Version110, Version120, Version130, Version140,
		Version150, Version160, Version170, Version180, VersionES6,
		VersionECMAScript:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Feature flags
// ---------------------------------------------------------------------------

// Feature identifies a semantic that differs between language versions or
// embedding policies.
type Feature int

const (
	// FeatureOldUndefNullThis makes null/undefined this arguments to
	// call/apply and plain calls resolve to the global object even in
	// strict code.
	FeatureOldUndefNullThis Feature = iota + 1
	// FeatureStrictMode reports warnings for dubious but legal code, such
	// as reading an undefined property or setting a read-only inherited one.
	FeatureStrictMode
	// FeatureStrictVars makes assignment to undeclared variables a
	// ReferenceError in sloppy code too.
	FeatureStrictVars
	// FeatureToStringAsSource makes Object/Array toString return source
	// text, as JavaScript 1.2 did.
	FeatureToStringAsSource
	// FeatureParentProtoProperties exposes __proto__.
	FeatureParentProtoProperties
	// FeatureLocationInformationInError adds fileName and lineNumber to
	// error objects.
	FeatureLocationInformationInError
	// FeatureWarningAsError turns reported warnings into errors.
	FeatureWarningAsError
	// FeatureReservedKeywordAsIdentifier allows future reserved words as
	// identifiers.
	FeatureReservedKeywordAsIdentifier
	FeatureBlockScope
	FeatureArrowFunctions
	FeatureTemplateLiterals
	FeatureForOf
	FeatureExponentOperator
	FeatureNullishCoalescing

	featureCount
)

var featureNames = map[Feature]string{
	FeatureOldUndefNullThis:            "old_undef_null_this",
	FeatureStrictMode:                  "strict_mode",
	FeatureStrictVars:                  "strict_vars",
	FeatureToStringAsSource:            "to_string_as_source",
	FeatureParentProtoProperties:       "parent_proto_properties",
	FeatureLocationInformationInError:  "location_information_in_error",
	FeatureWarningAsError:              "warning_as_error",
	FeatureReservedKeywordAsIdentifier: "reserved_keyword_as_identifier",
	FeatureBlockScope:                  "block_scope",
	FeatureArrowFunctions:              "arrow_functions",
	FeatureTemplateLiterals:            "template_literals",
	FeatureForOf:                       "for_of",
	FeatureExponentOperator:            "exponent_operator",
	FeatureNullishCoalescing:           "nullish_coalescing",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Feature(%d)", int(f))
}

// ParseFeature looks a feature up by its configuration name.
func ParseFeature(name string) (Feature, bool) {
	for f, n := range featureNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// Features lists every feature flag in declaration order.
func Features() []Feature {
	out := make([]Feature, 0, featureCount-1)
	for f := FeatureOldUndefNullThis; f < featureCount; f++ {
		out = append(out, f)
	}
	return out
}

// VersionHasFeature returns the default value of f for language version
// version, before any factory override.
func VersionHasFeature(version int, f Feature) bool {
	if version == VersionUnknown || version == 0 {
		version = VersionDefault
	}
	switch f {
	case FeatureOldUndefNullThis:
		return version <= Version170
	case FeatureToStringAsSource:
		return version == Version120
	case FeatureParentProtoProperties:
		return true
	case FeatureReservedKeywordAsIdentifier:
		return true
	case FeatureBlockScope:
		return version >= Version170
	case FeatureArrowFunctions, FeatureTemplateLiterals, FeatureForOf:
		return version >= VersionES6
	case FeatureExponentOperator, FeatureNullishCoalescing:
		return version >= VersionECMAScript
	}
	return false
}

// FeatureSet answers feature queries. *Context implements it; parsers and
// compilers accept any implementation.
type FeatureSet interface {
	HasFeature(f Feature) bool
}

// VersionFeatures is a FeatureSet with the defaults of one version.
type VersionFeatures int

func (v VersionFeatures) HasFeature(f Feature) bool {
	return VersionHasFeature(int(v), f)
}
